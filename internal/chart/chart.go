// Package chart turns a chart spec and a result table into a standalone HTML
// chart.
package chart

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/KaramelBytes/insightloom/internal/analysis"
	"github.com/KaramelBytes/insightloom/internal/table"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

type Type string

const (
	Bar  Type = "bar"
	Line Type = "line"
	Pie  Type = "pie"
)

// Spec describes a chart over the columns of a table.
type Spec struct {
	Type  Type     `json:"type"`
	X     string   `json:"x"`
	Y     []string `json:"y"`
	Title string   `json:"title,omitempty"`
}

// Series is one numeric column aligned with the chart labels. Cells that do
// not parse as numbers are NaN.
type Series struct {
	Name   string
	Values []float64
}

// Chart is a rendered chart with the data it was built from.
type Chart struct {
	Spec   Spec
	Labels []string
	Series []Series
	HTML   []byte
	// Path is set when the HTML was also written to disk.
	Path string
}

// Build validates spec against t and renders it.
func Build(spec Spec, t *table.Table) (*Chart, error) {
	labels, series, err := Extract(spec, t)
	if err != nil {
		return nil, err
	}
	c := &Chart{Spec: spec, Labels: labels, Series: series}
	c.Spec.Type = Type(strings.ToLower(string(spec.Type)))
	if c.Spec.Title == "" {
		names := make([]string, len(series))
		for i, s := range series {
			names[i] = s.Name
		}
		c.Spec.Title = fmt.Sprintf("%s by %s", strings.Join(names, ", "), spec.X)
	}
	html, err := render(c)
	if err != nil {
		return nil, err
	}
	c.HTML = html
	return c, nil
}

// Extract resolves the chart columns in t. An empty Y selects every numeric
// column other than X.
func Extract(spec Spec, t *table.Table) ([]string, []Series, error) {
	switch Type(strings.ToLower(string(spec.Type))) {
	case Bar, Line, Pie:
	default:
		return nil, nil, fmt.Errorf("unsupported chart type %q", spec.Type)
	}
	if t == nil || t.NumRows() == 0 {
		return nil, nil, fmt.Errorf("chart has no data")
	}
	labels, ok := t.Column(spec.X)
	if !ok {
		return nil, nil, fmt.Errorf("chart x column %q not found", spec.X)
	}
	ys := spec.Y
	if len(ys) == 0 {
		ys = numericColumns(t, spec.X)
	}
	if len(ys) == 0 {
		return nil, nil, fmt.Errorf("chart needs at least one numeric y column")
	}
	if Type(strings.ToLower(string(spec.Type))) == Pie {
		ys = ys[:1]
	}
	series := make([]Series, 0, len(ys))
	for _, y := range ys {
		cells, ok := t.Column(y)
		if !ok {
			return nil, nil, fmt.Errorf("chart y column %q not found", y)
		}
		s := Series{Name: t.Columns[t.Index(y)], Values: make([]float64, len(cells))}
		parsed := 0
		for i, c := range cells {
			if v, ok := analysis.ParseFloat(c); ok {
				s.Values[i] = v
				parsed++
			} else {
				s.Values[i] = math.NaN()
			}
		}
		if parsed == 0 {
			return nil, nil, fmt.Errorf("chart y column %q is not numeric", y)
		}
		series = append(series, s)
	}
	return labels, series, nil
}

func numericColumns(t *table.Table, x string) []string {
	var out []string
	xi := t.Index(x)
	for i, name := range t.Columns {
		if i == xi {
			continue
		}
		numeric := false
		for _, r := range t.Rows {
			if strings.TrimSpace(r[i]) == "" {
				continue
			}
			if _, ok := analysis.ParseFloat(r[i]); !ok {
				numeric = false
				break
			}
			numeric = true
		}
		if numeric {
			out = append(out, name)
		}
	}
	return out
}

func value(v float64) any {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

func render(c *Chart) ([]byte, error) {
	global := []charts.GlobalOpts{
		charts.WithTitleOpts(opts.Title{Title: c.Spec.Title}),
		charts.WithInitializationOpts(opts.Initialization{PageTitle: c.Spec.Title, Width: "900px", Height: "500px"}),
	}
	var buf bytes.Buffer
	var err error
	switch c.Spec.Type {
	case Bar:
		bar := charts.NewBar()
		bar.SetGlobalOptions(global...)
		bar.SetXAxis(c.Labels)
		for _, s := range c.Series {
			data := make([]opts.BarData, len(s.Values))
			for i, v := range s.Values {
				data[i] = opts.BarData{Value: value(v)}
			}
			bar.AddSeries(s.Name, data)
		}
		err = bar.Render(&buf)
	case Line:
		line := charts.NewLine()
		line.SetGlobalOptions(global...)
		line.SetXAxis(c.Labels)
		for _, s := range c.Series {
			data := make([]opts.LineData, len(s.Values))
			for i, v := range s.Values {
				data[i] = opts.LineData{Value: value(v)}
			}
			line.AddSeries(s.Name, data)
		}
		err = line.Render(&buf)
	case Pie:
		pie := charts.NewPie()
		pie.SetGlobalOptions(global...)
		s := c.Series[0]
		data := make([]opts.PieData, 0, len(s.Values))
		for i, v := range s.Values {
			if math.IsNaN(v) {
				continue
			}
			data = append(data, opts.PieData{Name: c.Labels[i], Value: v})
		}
		pie.AddSeries(s.Name, data)
		err = pie.Render(&buf)
	default:
		return nil, fmt.Errorf("unsupported chart type %q", c.Spec.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}
	return buf.Bytes(), nil
}
