package engine

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/insightloom/internal/analysis"
	"github.com/KaramelBytes/insightloom/internal/table"
	"github.com/KaramelBytes/insightloom/internal/utils"
)

const systemRules = `You are a data analyst working on one uploaded table.
Answer the user's question by writing a JSON plan. Reply with the JSON object only.

Plan shape:
{
  "output": "text" | "table" | "chart" | "none",
  "steps": [ ... ],
  "answer": "sentence with {column} placeholders filled from the first result row",
  "chart": {"type": "bar" | "line" | "pie", "x": "<column>", "y": ["<column>", ...], "title": "..."}
}

Steps run in order on the table; each step sees the result of the previous one:
- {"op": "filter", "column": "c", "operator": "==|!=|>|>=|<|<=|contains", "value": v}
- {"op": "group", "by": ["c", ...], "aggregations": [{"column": "c", "func": "sum|mean|min|max|count|nunique", "as": "name"}]}
- {"op": "aggregate", "aggregations": [ ... ]}   (whole table, one row)
- {"op": "sort", "column": "c", "descending": true}
- {"op": "limit", "n": 10}
- {"op": "select", "columns": ["c", ...]}

Rules:
- Use column names exactly as listed in the schema.
- A "chart" plan must leave the x column and every y column in the step result.
- Use "none" only when the question cannot be answered from this table.`

// buildPrompt assembles the messages for one question. The dataset summary is
// cut to budget tokens when budget is positive.
func buildPrompt(t *table.Table, q Query, sampleRows, budget int) (system, user string) {
	opt := analysis.DefaultOptions()
	if sampleRows > 0 {
		opt.SampleRows = sampleRows
	}
	summary := analysis.Profile(t, opt).Markdown()
	if budget > 0 {
		summary = utils.TruncateToTokenLimit(summary, budget)
	}

	var sb strings.Builder
	sb.WriteString("[DATASET]\n")
	sb.WriteString(summary)
	sb.WriteString("\n\n[COLUMNS]\n")
	sb.WriteString(strings.Join(quoteAll(t.Columns), ", "))
	sb.WriteString("\n\n[GUIDANCE]\n")
	sb.WriteString(intentGuidance(q.Intent))
	sb.WriteString("\n\n[QUESTION]\n")
	sb.WriteString(strings.TrimSpace(q.Text))
	sb.WriteString("\n")
	return systemRules, sb.String()
}

func intentGuidance(in Intent) string {
	if in == IntentVisual {
		return "The user asked from the visual insights tab. Prefer \"output\": \"chart\" unless a chart cannot express the answer."
	}
	return "The user asked from the text analysis tab. Prefer \"output\": \"text\" for single values and summaries, \"table\" for lists."
}

func quoteAll(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = fmt.Sprintf("%q", c)
	}
	return out
}
