// Package render turns analysis results and failures into something a person
// can look at: a view model for the web page and pterm output for the CLI.
package render

import (
	"errors"
	"fmt"
	"strings"

	"github.com/KaramelBytes/insightloom/internal/apperr"
	"github.com/KaramelBytes/insightloom/internal/engine"
	"github.com/KaramelBytes/insightloom/internal/logging"
)

// NoResultText is shown when the engine returns nothing.
const NoResultText = "No result returned."

// View is the display form of one result. Only the fields for Kind are set.
type View struct {
	Kind    engine.Kind
	Heading string
	Warning string

	Answer string

	Columns []string
	Rows    [][]string

	ChartTitle string
	ChartHTML  string
	ChartPath  string

	Code string
}

// HasCode reports whether the code panel should be shown.
func (v View) HasCode() bool { return v.Code != "" }

// Build maps a result onto its view. It has no side effects.
func Build(res engine.Result) View {
	v := View{Kind: res.Kind, Code: res.Code}
	switch res.Kind {
	case engine.KindTable:
		v.Heading = "Generated table"
		if res.Table != nil {
			v.Columns = res.Table.Columns
			v.Rows = res.Table.Rows
		}
	case engine.KindText:
		v.Heading = "Answer"
		v.Answer = res.Text
	case engine.KindChart:
		v.Heading = "Generated output"
		if res.Chart != nil {
			v.ChartTitle = res.Chart.Spec.Title
			v.ChartHTML = string(res.Chart.HTML)
			v.ChartPath = res.Chart.Path
		}
	default:
		// engine.KindNone, and anything a newer engine might add
		return View{Kind: engine.KindNone, Warning: NoResultText, Code: res.Code}
	}
	return v
}

// Message turns a failure into the single line shown to the user. Secrets
// are masked.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		return logging.PresentError("An error occurred", err)
	}
	var prefix string
	switch ae.Kind {
	case apperr.UnsupportedFormat:
		return capitalize(logging.Mask(ae.Message))
	case apperr.DecodeError:
		prefix = "Could not read the file"
	case apperr.AnalysisError:
		prefix = "Error while querying"
	case apperr.NoResult:
		return NoResultText
	default:
		prefix = "An error occurred"
	}
	detail := ae.Message
	if ae.Err != nil {
		detail = fmt.Sprintf("%s: %v", ae.Message, ae.Err)
	}
	return prefix + ": " + logging.Mask(detail)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
