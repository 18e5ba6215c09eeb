package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/KaramelBytes/insightloom/internal/analysis"
	"github.com/KaramelBytes/insightloom/internal/table"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// defaultLimit is the row count of a limit step without "n".
const defaultLimit = 5

// Execute runs the plan's steps over a deep copy of t and returns the result
// table. t itself is never modified.
func (p *Plan) Execute(t *table.Table) (*table.Table, error) {
	cur := t.Clone()
	for i, st := range p.Steps {
		next, err := applyStep(cur, st)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i+1, st.Op, err)
		}
		cur = next
	}
	return cur, nil
}

func applyStep(t *table.Table, st Step) (*table.Table, error) {
	switch strings.ToLower(st.Op) {
	case "filter":
		return filterRows(t, st)
	case "group", "groupby", "group_by":
		return groupBy(t, st.By, st.Aggregations)
	case "aggregate", "agg":
		return groupBy(t, nil, st.Aggregations)
	case "sort":
		return sortRows(t, st.Column, st.Descending)
	case "limit", "head":
		switch {
		case st.N == nil:
			return t.Head(defaultLimit), nil
		case *st.N <= 0:
			return nil, fmt.Errorf("limit must be positive, got %d", *st.N)
		}
		return t.Head(*st.N), nil
	case "select":
		return selectColumns(t, st.Columns)
	}
	return nil, fmt.Errorf("unknown operation %q", st.Op)
}

func columnIndex(t *table.Table, name string) (int, error) {
	idx := t.Index(name)
	if idx < 0 {
		return -1, fmt.Errorf("unknown column %q (available: %s)", name, strings.Join(t.Columns, ", "))
	}
	return idx, nil
}

func filterRows(t *table.Table, st Step) (*table.Table, error) {
	idx, err := columnIndex(t, st.Column)
	if err != nil {
		return nil, err
	}
	want := valueString(st.Value)
	op := strings.TrimSpace(st.Operator)
	if op == "" || op == "=" {
		op = "=="
	}
	switch op {
	case "==", "!=", ">", ">=", "<", "<=", "contains":
	default:
		return nil, fmt.Errorf("unknown filter operator %q", st.Operator)
	}
	rows := lo.Filter(t.Rows, func(r []string, _ int) bool {
		return match(r[idx], op, want)
	})
	return &table.Table{Name: t.Name, Columns: t.Columns, Rows: rows}, nil
}

func valueString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return decimal.NewFromFloat(x).String()
	}
	return fmt.Sprint(v)
}

func match(cell, op, want string) bool {
	if op == "contains" {
		return strings.Contains(strings.ToLower(cell), strings.ToLower(want))
	}
	if op != "==" && op != "!=" {
		// ordering a number against a blank or text cell never matches
		_, cellNum := analysis.ParseDecimal(cell)
		_, wantNum := analysis.ParseDecimal(want)
		if cellNum != wantNum {
			return false
		}
	}
	c := compareCells(cell, want)
	switch op {
	case "==":
		return c == 0
	case "!=":
		return c != 0
	case ">":
		return c > 0
	case ">=":
		return c >= 0
	case "<":
		return c < 0
	case "<=":
		return c <= 0
	}
	return false
}

// compareCells orders numerically when both sides parse as numbers and
// case-insensitively as text otherwise.
func compareCells(a, b string) int {
	da, okA := analysis.ParseDecimal(a)
	db, okB := analysis.ParseDecimal(b)
	if okA && okB {
		return da.Cmp(db)
	}
	return strings.Compare(strings.ToLower(strings.TrimSpace(a)), strings.ToLower(strings.TrimSpace(b)))
}

func sortRows(t *table.Table, column string, desc bool) (*table.Table, error) {
	idx, err := columnIndex(t, column)
	if err != nil {
		return nil, err
	}
	rows := make([][]string, len(t.Rows))
	copy(rows, t.Rows)
	sort.SliceStable(rows, func(i, j int) bool {
		c := compareCells(rows[i][idx], rows[j][idx])
		if desc {
			return c > 0
		}
		return c < 0
	})
	return &table.Table{Name: t.Name, Columns: t.Columns, Rows: rows}, nil
}

func selectColumns(t *table.Table, cols []string) (*table.Table, error) {
	if len(cols) == 0 {
		return nil, fmt.Errorf("select needs at least one column")
	}
	idxs := make([]int, len(cols))
	for i, c := range cols {
		idx, err := columnIndex(t, c)
		if err != nil {
			return nil, err
		}
		idxs[i] = idx
	}
	names := lo.Map(idxs, func(i int, _ int) string { return t.Columns[i] })
	rows := lo.Map(t.Rows, func(r []string, _ int) []string {
		return lo.Map(idxs, func(i int, _ int) string { return r[i] })
	})
	return &table.Table{Name: t.Name, Columns: names, Rows: rows}, nil
}

// groupBy partitions rows by the by columns, in order of first appearance, and
// reduces each partition with aggs. With no by columns the whole table is one
// group and the result has exactly one row.
func groupBy(t *table.Table, by []string, aggs []Aggregation) (*table.Table, error) {
	if len(aggs) == 0 && len(by) == 0 {
		return nil, fmt.Errorf("aggregate needs at least one aggregation")
	}
	byIdx := make([]int, len(by))
	for i, b := range by {
		idx, err := columnIndex(t, b)
		if err != nil {
			return nil, err
		}
		byIdx[i] = idx
	}
	aggIdx := make([]int, len(aggs))
	for i, a := range aggs {
		if !lo.Contains([]string{"sum", "mean", "avg", "average", "min", "max", "count", "nunique"}, strings.ToLower(a.Func)) {
			return nil, fmt.Errorf("unknown aggregation %q", a.Func)
		}
		aggIdx[i] = -1
		if a.Column == "" || a.Column == "*" {
			if strings.ToLower(a.Func) != "count" {
				return nil, fmt.Errorf("%s needs a column", a.Func)
			}
			continue
		}
		idx, err := columnIndex(t, a.Column)
		if err != nil {
			return nil, err
		}
		aggIdx[i] = idx
	}

	var order []string
	groups := map[string][][]string{}
	for _, r := range t.Rows {
		key := strings.Join(lo.Map(byIdx, func(i int, _ int) string { return r[i] }), "\x1f")
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], r)
	}
	if len(by) == 0 && len(order) == 0 {
		order = []string{""}
	}

	cols := lo.Map(byIdx, func(i int, _ int) string { return t.Columns[i] })
	for _, a := range aggs {
		cols = append(cols, a.name())
	}
	out := &table.Table{Name: t.Name, Columns: cols}
	for _, key := range order {
		members := groups[key]
		row := make([]string, 0, len(cols))
		for _, i := range byIdx {
			row = append(row, members[0][i])
		}
		for i, a := range aggs {
			row = append(row, reduce(members, aggIdx[i], strings.ToLower(a.Func)))
		}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

// reduce computes one aggregate with exact decimal arithmetic. Cells that
// are blank or not numeric are skipped by the numeric aggregates.
func reduce(rows [][]string, idx int, fn string) string {
	if idx < 0 {
		return fmt.Sprint(len(rows))
	}
	cells := lo.FilterMap(rows, func(r []string, _ int) (string, bool) {
		c := strings.TrimSpace(r[idx])
		return c, c != ""
	})
	switch fn {
	case "count":
		return fmt.Sprint(len(cells))
	case "nunique":
		return fmt.Sprint(len(lo.Uniq(cells)))
	}
	nums := lo.FilterMap(cells, func(c string, _ int) (decimal.Decimal, bool) {
		return analysis.ParseDecimal(c)
	})
	if len(nums) == 0 {
		if fn == "sum" {
			return "0"
		}
		return ""
	}
	switch fn {
	case "sum":
		return decimal.Sum(nums[0], nums[1:]...).String()
	case "mean", "avg", "average":
		return decimal.Avg(nums[0], nums[1:]...).Round(6).String()
	case "min":
		return decimal.Min(nums[0], nums[1:]...).String()
	case "max":
		return decimal.Max(nums[0], nums[1:]...).String()
	}
	return ""
}
