// Package session holds one operator's uploaded table and routes queries to
// the analysis engine.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/KaramelBytes/insightloom/internal/apperr"
	"github.com/KaramelBytes/insightloom/internal/engine"
	"github.com/KaramelBytes/insightloom/internal/logging"
	"github.com/KaramelBytes/insightloom/internal/parser"
	"github.com/KaramelBytes/insightloom/internal/table"
	"github.com/pterm/pterm"
)

// Analyzer answers a query over a table. *engine.Engine implements it.
type Analyzer interface {
	Chat(ctx context.Context, t *table.Table, q engine.Query) (engine.Result, error)
}

// Handler serializes Load and Submit for one session. It survives any
// failure: errors are returned, never raised, and the held table is only
// replaced by a successful Load.
type Handler struct {
	eng Analyzer
	log *pterm.Logger

	mu  sync.Mutex
	tbl *table.Table
}

func NewHandler(eng Analyzer, log *pterm.Logger) *Handler {
	if log == nil {
		log = logging.Discard()
	}
	return &Handler{eng: eng, log: log}
}

// Load decodes an upload and makes it the current table.
func (h *Handler) Load(content []byte, filename string) (*table.Table, error) {
	return h.load(filename, func() (*table.Table, error) { return parser.Parse(content, filename) })
}

// LoadSheet is Load with a chosen .xlsx worksheet, by name or 1-based index.
func (h *Handler) LoadSheet(content []byte, filename, sheetName string, sheetIndex int) (*table.Table, error) {
	return h.load(filename, func() (*table.Table, error) {
		return parser.ParseSheet(content, filename, sheetName, sheetIndex)
	})
}

func (h *Handler) load(filename string, parse func() (*table.Table, error)) (*table.Table, error) {
	t, err := parse()
	if err != nil {
		h.log.Warn("upload rejected", h.log.Args("file", filename, "kind", apperr.KindOf(err)))
		return nil, err
	}
	h.mu.Lock()
	h.tbl = t
	h.mu.Unlock()
	h.log.Info("table loaded", h.log.Args("file", filename, "rows", t.NumRows(), "cols", t.NumCols()))
	return t, nil
}

// Submit asks the engine about the current table. A result of kind none is
// returned without error.
func (h *Handler) Submit(ctx context.Context, text string, intent engine.Intent) (res engine.Result, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.tbl == nil {
		return engine.Result{}, apperr.New(apperr.AnalysisError, "upload a file first")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return engine.Result{}, apperr.New(apperr.AnalysisError, "enter a question first")
	}
	if h.eng == nil {
		return engine.Result{}, apperr.New(apperr.AnalysisError, "no analysis engine configured")
	}

	defer func() {
		if r := recover(); r != nil {
			h.log.Error("engine panic", h.log.Args("panic", fmt.Sprint(r)))
			res = engine.Result{}
			err = apperr.Wrap(apperr.AnalysisError, "the analysis engine crashed", fmt.Errorf("%v", r))
		}
	}()

	h.log.Info("query", h.log.Args("intent", intent, "query", logging.Mask(text)))
	res, err = h.eng.Chat(ctx, h.tbl, engine.Query{Text: text, Intent: intent})
	if err != nil {
		if apperr.KindOf(err) == "" {
			err = apperr.Wrap(apperr.AnalysisError, "analysis failed", err)
		}
		h.log.Warn("query failed", h.log.Args("error", logging.Mask(err.Error())))
		return engine.Result{}, err
	}
	return res, nil
}

// Table returns the current table, or nil before the first successful Load.
func (h *Handler) Table() *table.Table {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tbl
}

// Reset drops the current table.
func (h *Handler) Reset() {
	h.mu.Lock()
	h.tbl = nil
	h.mu.Unlock()
}
