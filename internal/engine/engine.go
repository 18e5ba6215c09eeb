// Package engine answers natural-language questions about a table. The model
// is asked for a JSON plan, the plan is executed locally against a copy of the
// table, and the outcome is shaped into a Result.
package engine

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/KaramelBytes/insightloom/internal/ai"
	"github.com/KaramelBytes/insightloom/internal/apperr"
	"github.com/KaramelBytes/insightloom/internal/chart"
	"github.com/KaramelBytes/insightloom/internal/logging"
	"github.com/KaramelBytes/insightloom/internal/table"
	"github.com/KaramelBytes/insightloom/internal/utils"
	"github.com/google/uuid"
	"github.com/pterm/pterm"
)

// Intent tells the engine which tab the question came from.
type Intent string

const (
	IntentVisual  Intent = "visual"
	IntentTextual Intent = "textual"
)

// ParseIntent accepts visual, textual or text (any case).
func ParseIntent(s string) (Intent, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "visual":
		return IntentVisual, nil
	case "textual", "text":
		return IntentTextual, nil
	}
	return "", fmt.Errorf("unknown intent %q (use visual or textual)", s)
}

// Query is one question about the loaded table.
type Query struct {
	Text   string
	Intent Intent
}

// Kind tags the payload of a Result.
type Kind string

const (
	KindTable Kind = "table"
	KindText  Kind = "text"
	KindChart Kind = "chart"
	KindNone  Kind = "none"
)

// Result is the outcome of one query. Exactly one payload is set, matching
// Kind; KindNone carries no payload.
type Result struct {
	Kind  Kind
	Table *table.Table
	Text  string
	Chart *chart.Chart
	// Code is the executed plan, pretty-printed, when SaveCode is on.
	Code string
}

// Options configures an Engine. The zero value asks the model with its
// defaults and reports no code.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int

	EnableCache bool
	SaveCharts  bool
	SaveCode    bool
	Verbose     bool
	ChartsDir   string

	PromptTokenBudget int
	SampleRows        int
}

// Engine is safe for concurrent use.
type Engine struct {
	rt  ai.Runtime
	opt Options
	log *pterm.Logger

	mu    sync.Mutex
	cache map[string]Result
}

func New(rt ai.Runtime, opt Options, log *pterm.Logger) *Engine {
	if log == nil {
		log = logging.Discard()
	}
	if opt.ChartsDir == "" {
		opt.ChartsDir = "charts"
	}
	return &Engine{rt: rt, opt: opt, log: log, cache: map[string]Result{}}
}

// Chat answers q over t with a single model call. Failures are returned as
// apperr AnalysisError; a plan that yields nothing is a KindNone result.
func (e *Engine) Chat(ctx context.Context, t *table.Table, q Query) (Result, error) {
	if t == nil {
		return Result{}, apperr.New(apperr.AnalysisError, "no table loaded")
	}
	if strings.TrimSpace(q.Text) == "" {
		return Result{}, apperr.New(apperr.AnalysisError, "query is empty")
	}
	if e.rt == nil {
		return Result{}, apperr.New(apperr.AnalysisError, "no language model configured")
	}

	key := e.cacheKey(t, q)
	if e.opt.EnableCache {
		e.mu.Lock()
		res, ok := e.cache[key]
		e.mu.Unlock()
		if ok {
			e.log.Debug("cache hit", e.log.Args("intent", q.Intent))
			return res, nil
		}
	}

	system, user := buildPrompt(t, q, e.opt.SampleRows, e.opt.PromptTokenBudget)
	tokens := utils.TokenBreakdown(map[string]string{"system": system, "user": user})
	if mi, ok := ai.LookupModel(e.opt.Model); ok && mi.ContextTokens > 0 && tokens["system"]+tokens["user"]+e.opt.MaxTokens > mi.ContextTokens {
		e.log.Warn("prompt may exceed the model context window", e.log.Args(
			"model", e.opt.Model,
			"prompt_tokens", tokens["system"]+tokens["user"],
			"context_tokens", mi.ContextTokens,
		))
	}
	if e.opt.Verbose {
		e.log.Debug("prompt", e.log.Args("model", e.opt.Model, "intent", q.Intent, "system_tokens", tokens["system"], "user_tokens", tokens["user"]))
		e.log.Debug(user)
	}

	resp, err := e.rt.Generate(ctx, ai.GenerateRequest{
		Model: e.opt.Model,
		Messages: []ai.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:   e.opt.MaxTokens,
		Temperature: e.opt.Temperature,
	})
	if err != nil {
		return Result{}, apperr.Wrap(apperr.AnalysisError, "model request failed", err)
	}
	reply := strings.TrimSpace(resp.Content())
	if e.opt.Verbose {
		args := []any{"request_id", resp.RequestID, "total_tokens", resp.Usage.TotalTokens}
		if cost, ok := ai.EstimateCostUSD(e.opt.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens); ok {
			args = append(args, "cost_usd", fmt.Sprintf("%.6f", cost))
		}
		e.log.Debug("reply", e.log.Args(args...))
		e.log.Debug(logging.Mask(reply))
	}
	if reply == "" {
		return e.finish(key, Result{Kind: KindNone})
	}

	plan, err := ParsePlan(reply)
	if err != nil {
		return Result{}, apperr.Wrap(apperr.AnalysisError, "could not read the model's plan", err)
	}
	res, err := e.run(plan, t)
	if err != nil {
		return Result{}, apperr.Wrap(apperr.AnalysisError, "could not run the model's plan", err)
	}
	if e.opt.SaveCode {
		code, err := utils.PrettyJSON(plan)
		if err == nil {
			res.Code = string(code)
		}
	}
	return e.finish(key, res)
}

func (e *Engine) finish(key string, res Result) (Result, error) {
	if e.opt.EnableCache {
		e.mu.Lock()
		e.cache[key] = res
		e.mu.Unlock()
	}
	return res, nil
}

func (e *Engine) cacheKey(t *table.Table, q Query) string {
	h := sha1.New()
	for _, part := range []string{t.Fingerprint(), string(q.Intent), strings.TrimSpace(q.Text), e.opt.Model} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (e *Engine) run(plan *Plan, t *table.Table) (Result, error) {
	if plan.Output == OutputNone {
		return Result{Kind: KindNone}, nil
	}
	out, err := plan.Execute(t)
	if err != nil {
		return Result{}, err
	}
	switch plan.Output {
	case OutputTable:
		return Result{Kind: KindTable, Table: out}, nil
	case OutputText:
		return textResult(plan.Answer, out), nil
	case OutputChart:
		if plan.Chart == nil {
			return Result{}, fmt.Errorf("chart output without a chart spec")
		}
		c, err := chart.Build(*plan.Chart, out)
		if err != nil {
			return Result{}, err
		}
		if e.opt.SaveCharts {
			path := filepath.Join(e.opt.ChartsDir, uuid.NewString()+".html")
			if err := utils.SafeWriteFile(path, c.HTML); err != nil {
				return Result{}, fmt.Errorf("save chart: %w", err)
			}
			c.Path = path
			e.log.Info("chart saved", e.log.Args("path", path))
		}
		return Result{Kind: KindChart, Chart: c}, nil
	}
	return Result{}, fmt.Errorf("unknown output %q", plan.Output)
}

var placeholder = regexp.MustCompile(`\{([^{}]+)\}`)

// textResult fills the answer template from the first row of out. Without a
// template a single cell is the answer and anything larger stays a table.
func textResult(answer string, out *table.Table) Result {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		switch {
		case out.NumRows() == 0:
			return Result{Kind: KindNone}
		case out.NumRows() == 1 && out.NumCols() == 1:
			return Result{Kind: KindText, Text: out.Rows[0][0]}
		}
		return Result{Kind: KindTable, Table: out}
	}
	if !placeholder.MatchString(answer) {
		return Result{Kind: KindText, Text: answer}
	}
	if out.NumRows() == 0 {
		return Result{Kind: KindNone}
	}
	row := out.Rows[0]
	text := placeholder.ReplaceAllStringFunc(answer, func(m string) string {
		idx := out.Index(strings.TrimSpace(m[1 : len(m)-1]))
		if idx < 0 {
			return m
		}
		return row[idx]
	})
	return Result{Kind: KindText, Text: text}
}
