package engine

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/KaramelBytes/insightloom/internal/table"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ordersTable() *table.Table {
	return table.New("orders.csv", []string{"Region", "Product", "Amount", "Qty"}, [][]string{
		{"North", "Widget", "9", "1"},
		{"South", "Gadget", "10", "2"},
		{"North", "Gadget", "1,5", "3"},
		{"East", "Widget", "", "4"},
		{"South", "Widget", "120", "5"},
	})
}

func run(t *testing.T, steps ...Step) *table.Table {
	t.Helper()
	out, err := (&Plan{Output: OutputTable, Steps: steps}).Execute(ordersTable())
	require.NoError(t, err)
	return out
}

func column(t *testing.T, tbl *table.Table, name string) []string {
	t.Helper()
	vals, ok := tbl.Column(name)
	require.True(t, ok, "column %s", name)
	return vals
}

func TestFilterOperators(t *testing.T) {
	cases := []struct {
		op    string
		value any
		want  []string
	}{
		{"==", "north", []string{"Widget", "Gadget"}},
		{"", "East", []string{"Widget"}},
		{"!=", "North", []string{"Gadget", "Widget", "Widget"}},
		{">", float64(9), []string{"Gadget", "Widget"}},
		{">=", "9", []string{"Widget", "Gadget", "Widget"}},
		{"<", 10.0, []string{"Widget", "Gadget"}},
		{"<=", "1.5", []string{"Gadget"}},
		{"contains", "dg", []string{"Widget", "Gadget", "Gadget", "Widget", "Widget"}},
	}
	for _, c := range cases {
		col := "Amount"
		if c.op == "==" || c.op == "" || c.op == "!=" {
			col = "Region"
		}
		if c.op == "contains" {
			col = "Product"
		}
		out := run(t, Step{Op: "filter", Column: col, Operator: c.op, Value: c.value})
		assert.Equal(t, c.want, column(t, out, "Product"), "operator %q", c.op)
	}
}

func TestSortIsNumericAware(t *testing.T) {
	out := run(t, Step{Op: "sort", Column: "amount", Descending: true})
	assert.Equal(t, []string{"120", "10", "9", "1,5", ""}, column(t, out, "Amount"))

	out = run(t, Step{Op: "sort", Column: "Region"})
	assert.Equal(t, []string{"East", "North", "North", "South", "South"}, column(t, out, "Region"))
	// stable within equal keys
	assert.Equal(t, []string{"Widget", "Gadget"}, column(t, out, "Product")[1:3])
}

func TestGroupAggregates(t *testing.T) {
	out := run(t, Step{Op: "group", By: []string{"region"}, Aggregations: []Aggregation{
		{Column: "Amount", Func: "sum"},
		{Column: "Qty", Func: "mean", As: "avg_qty"},
		{Column: "*", Func: "count", As: "orders"},
		{Column: "Product", Func: "nunique"},
	}})
	assert.Equal(t, []string{"Region", "sum_Amount", "avg_qty", "orders", "nunique_Product"}, out.Columns)
	assert.Equal(t, [][]string{
		{"North", "10.5", "2", "2", "2"},
		{"South", "130", "3.5", "2", "2"},
		{"East", "0", "4", "1", "1"},
	}, out.Rows)
}

func TestAggregateWholeTable(t *testing.T) {
	out := run(t, Step{Op: "aggregate", Aggregations: []Aggregation{
		{Column: "Amount", Func: "min"},
		{Column: "Amount", Func: "max"},
		{Column: "Amount", Func: "count"},
	}})
	assert.Equal(t, [][]string{{"1.5", "120", "4"}}, out.Rows)
}

func TestAggregateOnEmptyInputHasOneRow(t *testing.T) {
	out := run(t,
		Step{Op: "filter", Column: "Region", Value: "West"},
		Step{Op: "agg", Aggregations: []Aggregation{{Column: "Amount", Func: "sum"}, {Column: "Amount", Func: "mean"}}},
	)
	assert.Equal(t, [][]string{{"0", ""}}, out.Rows)
}

func TestLimitAndSelect(t *testing.T) {
	out := run(t, Step{Op: "select", Columns: []string{"product", "Region"}}, Step{Op: "head", N: lo.ToPtr(2)})
	assert.Equal(t, []string{"Product", "Region"}, out.Columns)
	assert.Equal(t, [][]string{{"Widget", "North"}, {"Gadget", "South"}}, out.Rows)

	out = run(t, Step{Op: "limit"})
	assert.Equal(t, 5, out.NumRows())
}

func TestLimitDistinguishesMissingFromZero(t *testing.T) {
	var st Step
	require.NoError(t, json.Unmarshal([]byte(`{"op":"limit"}`), &st))
	assert.Nil(t, st.N)

	require.NoError(t, json.Unmarshal([]byte(`{"op":"limit","n":0}`), &st))
	require.NotNil(t, st.N)
	_, err := (&Plan{Steps: []Step{st}}).Execute(ordersTable())
	assert.ErrorContains(t, err, "limit must be positive")
}

func TestHugeExponentCellIsNotANumber(t *testing.T) {
	in := table.New("orders.csv", []string{"Region", "Amount"}, [][]string{
		{"North", "10"},
		{"North", "1e99999999"},
		{"South", "1e-99999999"},
		{"South", "2,5"},
	})
	plan := &Plan{Steps: []Step{
		{Op: "group", By: []string{"Region"}, Aggregations: []Aggregation{
			{Column: "Amount", Func: "sum"},
			{Column: "Amount", Func: "count"},
		}},
		{Op: "sort", Column: "sum_Amount"},
	}}
	done := make(chan struct{})
	var out *table.Table
	var err error
	go func() {
		defer close(done)
		out, err = plan.Execute(in)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("aggregation over a huge exponent did not finish")
	}
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"South", "2.5", "2"}, {"North", "10", "2"}}, out.Rows)
}

func TestExecuteErrors(t *testing.T) {
	cases := map[string]Step{
		"unknown op":       {Op: "pivot"},
		"unknown column":   {Op: "filter", Column: "Revenue", Value: "1"},
		"bad operator":     {Op: "filter", Column: "Amount", Operator: "~", Value: "1"},
		"negative limit":   {Op: "limit", N: lo.ToPtr(-1)},
		"empty select":     {Op: "select"},
		"unknown agg":      {Op: "aggregate", Aggregations: []Aggregation{{Column: "Amount", Func: "median"}}},
		"sum needs column": {Op: "aggregate", Aggregations: []Aggregation{{Func: "sum"}}},
		"no aggregations":  {Op: "aggregate"},
	}
	for name, st := range cases {
		_, err := (&Plan{Steps: []Step{st}}).Execute(ordersTable())
		assert.Error(t, err, name)
	}

	_, err := (&Plan{Steps: []Step{{Op: "sort", Column: "Revenue"}}}).Execute(ordersTable())
	assert.EqualError(t, err, `step 1 (sort): unknown column "Revenue" (available: Region, Product, Amount, Qty)`)
}

func TestExecuteLeavesInputUntouched(t *testing.T) {
	in := ordersTable()
	before := in.Fingerprint()
	_, err := (&Plan{Steps: []Step{
		{Op: "sort", Column: "Amount"},
		{Op: "select", Columns: []string{"Amount"}},
	}}).Execute(in)
	require.NoError(t, err)
	assert.Equal(t, before, in.Fingerprint())
}
