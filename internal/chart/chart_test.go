package chart_test

import (
	"math"
	"testing"

	"github.com/KaramelBytes/insightloom/internal/chart"
	"github.com/KaramelBytes/insightloom/internal/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func salesTable() *table.Table {
	return table.New("sales.csv", []string{"country", "sales", "units"}, [][]string{
		{"US", "100", "1"},
		{"DE", "200", "n/a"},
		{"FR", "300", "3"},
	})
}

func TestBuildBar(t *testing.T) {
	c, err := chart.Build(chart.Spec{Type: "Bar", X: "Country", Y: []string{"SALES"}}, salesTable())
	require.NoError(t, err)

	assert.Equal(t, chart.Bar, c.Spec.Type)
	assert.Equal(t, "sales by Country", c.Spec.Title)
	assert.Equal(t, []string{"US", "DE", "FR"}, c.Labels)
	require.Len(t, c.Series, 1)
	assert.Equal(t, "sales", c.Series[0].Name)
	assert.Equal(t, []float64{100, 200, 300}, c.Series[0].Values)
	html := string(c.HTML)
	assert.Contains(t, html, "echarts")
	assert.Contains(t, html, "sales by Country")
}

func TestBuildLineDefaultsToNumericColumns(t *testing.T) {
	c, err := chart.Build(chart.Spec{Type: chart.Line, X: "country", Title: "Trend"}, salesTable())
	require.NoError(t, err)
	require.Len(t, c.Series, 1, "units holds a non-numeric cell")
	assert.Equal(t, "Trend", c.Spec.Title)
}

func TestBuildPieUsesFirstSeries(t *testing.T) {
	c, err := chart.Build(chart.Spec{Type: chart.Pie, X: "country", Y: []string{"units", "sales"}}, salesTable())
	require.NoError(t, err)
	require.Len(t, c.Series, 1)
	assert.Equal(t, "units", c.Series[0].Name)
	assert.True(t, math.IsNaN(c.Series[0].Values[1]))
	assert.NotEmpty(t, c.HTML)
}

func TestBuildErrors(t *testing.T) {
	cases := map[string]chart.Spec{
		"unknown type":  {Type: "scatter3d", X: "country", Y: []string{"sales"}},
		"missing x":     {Type: chart.Bar, X: "region", Y: []string{"sales"}},
		"missing y":     {Type: chart.Bar, X: "country", Y: []string{"profit"}},
		"non-numeric y": {Type: chart.Bar, X: "sales", Y: []string{"country"}},
	}
	for name, spec := range cases {
		_, err := chart.Build(spec, salesTable())
		assert.Error(t, err, name)
	}
	_, err := chart.Build(chart.Spec{Type: chart.Bar, X: "country"}, table.New("e", []string{"country"}, nil))
	assert.ErrorContains(t, err, "no data")
}
