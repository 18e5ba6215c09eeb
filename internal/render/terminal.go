package render

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/KaramelBytes/insightloom/internal/engine"
	"github.com/pterm/pterm"
	"github.com/samber/lo"
)

// Terminal prints results with pterm.
type Terminal struct {
	Out io.Writer
	// MaxRows caps printed table rows; 0 prints everything.
	MaxRows int
}

func NewTerminal(out io.Writer) *Terminal {
	if out == nil {
		out = os.Stdout
	}
	return &Terminal{Out: out, MaxRows: 50}
}

// Render prints one result followed by its code panel, if any.
func (r *Terminal) Render(res engine.Result) error {
	v := Build(res)
	switch v.Kind {
	case engine.KindTable:
		if err := r.table(v); err != nil {
			return err
		}
	case engine.KindText:
		fmt.Fprintln(r.Out, pterm.NewStyle(pterm.FgLightCyan, pterm.Bold).Sprint(v.Heading+":"))
		fmt.Fprint(r.Out, pterm.Success.Sprintln(v.Answer))
	case engine.KindChart:
		if err := r.chart(res, v); err != nil {
			return err
		}
	default:
		fmt.Fprint(r.Out, pterm.Warning.Sprintln(v.Warning))
	}
	if v.HasCode() {
		title := pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprint("Code used by the model")
		fmt.Fprintln(r.Out, pterm.DefaultBox.WithTitle(title).Sprint(v.Code))
	}
	return nil
}

// Error prints a failure as one warning line.
func (r *Terminal) Error(err error) {
	fmt.Fprint(r.Out, pterm.Error.Sprintln(Message(err)))
}

func (r *Terminal) table(v View) error {
	rows := v.Rows
	hidden := 0
	if r.MaxRows > 0 && len(rows) > r.MaxRows {
		hidden = len(rows) - r.MaxRows
		rows = rows[:r.MaxRows]
	}
	data := pterm.TableData{v.Columns}
	data = append(data, rows...)
	out, err := pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Srender()
	if err != nil {
		return fmt.Errorf("render table: %w", err)
	}
	fmt.Fprintln(r.Out, pterm.NewStyle(pterm.FgLightCyan, pterm.Bold).Sprint(v.Heading+":"))
	fmt.Fprintln(r.Out, out)
	if hidden > 0 {
		fmt.Fprintf(r.Out, "... %d more rows\n", hidden)
	}
	return nil
}

// chart draws the first series as a horizontal bar chart. Bar lengths are
// integers, so small values are scaled; labels carry the real value.
func (r *Terminal) chart(res engine.Result, v View) error {
	fmt.Fprintln(r.Out, pterm.NewStyle(pterm.FgLightCyan, pterm.Bold).Sprint(v.Heading+": "+v.ChartTitle))
	c := res.Chart
	if c != nil && len(c.Series) > 0 {
		bars := terminalBars(c.Labels, c.Series[0].Values)
		if len(bars) > 0 {
			out, err := pterm.DefaultBarChart.WithHorizontal().WithBars(bars).Srender()
			if err != nil {
				return fmt.Errorf("render chart: %w", err)
			}
			fmt.Fprintln(r.Out, out)
		}
	}
	if v.ChartPath != "" {
		fmt.Fprint(r.Out, pterm.Info.Sprintln("chart saved to "+v.ChartPath))
	}
	return nil
}

func terminalBars(labels []string, values []float64) pterm.Bars {
	type point struct {
		label string
		value float64
	}
	points := lo.Filter(lo.Map(values, func(v float64, i int) point {
		return point{label: labels[i], value: v}
	}), func(p point, _ int) bool { return !math.IsNaN(p.value) })
	if len(points) == 0 {
		return nil
	}
	peak := lo.MaxBy(points, func(a, b point) bool { return math.Abs(a.value) > math.Abs(b.value) })
	scale := 1.0
	if m := math.Abs(peak.value); m > 0 && m < 100 {
		scale = 100 / m
	}
	return lo.Map(points, func(p point, _ int) pterm.Bar {
		return pterm.Bar{Label: p.label + " (" + strconv.FormatFloat(p.value, 'f', -1, 64) + ")", Value: int(math.Round(p.value * scale))}
	})
}
