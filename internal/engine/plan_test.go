package engine

import (
	"testing"

	"github.com/KaramelBytes/insightloom/internal/chart"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlanToleratesFencesAndProse(t *testing.T) {
	reply := "Here is the plan:\n```json\n{\"output\": \"Chart\", \"chart\": {\"type\": \"bar\", \"x\": \"country\", \"y\": [\"sales\"]}}\n```\nHope it helps."
	p, err := ParsePlan(reply)
	require.NoError(t, err)
	assert.Equal(t, OutputChart, p.Output)
	require.NotNil(t, p.Chart)
	assert.Equal(t, chart.Bar, p.Chart.Type)
	assert.Equal(t, []string{"sales"}, p.Chart.Y)
}

func TestParsePlanInfersOutput(t *testing.T) {
	cases := map[string]string{
		`{"chart": {"type": "line", "x": "a"}}`: OutputChart,
		`{"answer": "It is {n}."}`:             OutputText,
		`{"steps": [{"op": "limit", "n": 3}]}`: OutputTable,
		`{}`:                                   OutputNone,
	}
	for in, want := range cases {
		p, err := ParsePlan(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, p.Output, in)
	}
}

func TestParsePlanSteps(t *testing.T) {
	p, err := ParsePlan(`{"output":"table","steps":[{"op":"filter","column":"qty","operator":">","value":3},{"op":"group","by":["region"],"aggregations":[{"column":"qty","func":"sum"}]}]}`)
	require.NoError(t, err)
	require.Len(t, p.Steps, 2)
	assert.Equal(t, float64(3), p.Steps[0].Value)
	assert.Equal(t, "sum_qty", p.Steps[1].Aggregations[0].name())
}

func TestParsePlanErrors(t *testing.T) {
	_, err := ParsePlan("no json here")
	assert.ErrorIs(t, err, errNoPlan)

	_, err = ParsePlan(`{"output": "text", "steps": [}`)
	assert.ErrorContains(t, err, "decode plan")
}

func TestAggregationName(t *testing.T) {
	assert.Equal(t, "total", Aggregation{Column: "x", Func: "sum", As: "total"}.name())
	assert.Equal(t, "count", Aggregation{Column: "*", Func: "count"}.name())
	assert.Equal(t, "max_x", Aggregation{Column: "x", Func: "max"}.name())
}
