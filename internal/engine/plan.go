package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/KaramelBytes/insightloom/internal/chart"
)

// Plan is the analysis program the model writes for one question. It is the
// "code" shown to the user and is executed as-is against a copy of the table.
type Plan struct {
	// Output is one of text, table, chart or none.
	Output string `json:"output"`
	Steps  []Step `json:"steps,omitempty"`
	// Answer is a sentence template; {column} placeholders are filled from
	// the first row of the step result.
	Answer string      `json:"answer,omitempty"`
	Chart  *chart.Spec `json:"chart,omitempty"`
}

// Step is one table transformation. Which fields apply depends on Op.
type Step struct {
	Op string `json:"op"`
	// filter, sort
	Column string `json:"column,omitempty"`
	// filter: == != > >= < <= contains
	Operator string `json:"operator,omitempty"`
	Value    any    `json:"value,omitempty"`
	// group
	By []string `json:"by,omitempty"`
	// group, aggregate
	Aggregations []Aggregation `json:"aggregations,omitempty"`
	// select
	Columns []string `json:"columns,omitempty"`
	// sort
	Descending bool `json:"descending,omitempty"`
	// limit; nil keeps the first 5 rows
	N *int `json:"n,omitempty"`
}

// Aggregation reduces one column. Func is sum, mean, min, max, count or
// nunique. As names the output column.
type Aggregation struct {
	Column string `json:"column"`
	Func   string `json:"func"`
	As     string `json:"as,omitempty"`
}

func (a Aggregation) name() string {
	if a.As != "" {
		return a.As
	}
	if a.Column == "" || a.Column == "*" {
		return a.Func
	}
	return a.Func + "_" + a.Column
}

const (
	OutputText  = "text"
	OutputTable = "table"
	OutputChart = "chart"
	OutputNone  = "none"
)

var errNoPlan = errors.New("model reply contains no JSON plan")

// ParsePlan extracts the JSON plan from a model reply. Markdown code fences
// and prose around the object are tolerated.
func ParsePlan(reply string) (*Plan, error) {
	s := strings.TrimSpace(reply)
	if i := strings.Index(s, "```"); i >= 0 {
		rest := s[i+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[nl+1:]
		}
		if j := strings.Index(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		s = strings.TrimSpace(rest)
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return nil, errNoPlan
	}
	var p Plan
	if err := json.Unmarshal([]byte(s[start:end+1]), &p); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	p.Output = strings.ToLower(strings.TrimSpace(p.Output))
	if p.Output == "" {
		switch {
		case p.Chart != nil:
			p.Output = OutputChart
		case p.Answer != "":
			p.Output = OutputText
		case len(p.Steps) > 0:
			p.Output = OutputTable
		default:
			p.Output = OutputNone
		}
	}
	return &p, nil
}
