// Package web serves the single-page insight UI over HTTP.
package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/KaramelBytes/insightloom/internal/engine"
	"github.com/KaramelBytes/insightloom/internal/logging"
	"github.com/KaramelBytes/insightloom/internal/parser"
	"github.com/KaramelBytes/insightloom/internal/render"
	"github.com/KaramelBytes/insightloom/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pterm/pterm"
)

const (
	defaultMaxUpload   = 200 << 20
	defaultPreviewRows = 200
)

// Server is the HTTP transport for insight sessions. One Analyzer is shared
// by every browser session; each session gets its own handler and table.
type Server struct {
	Analyzer session.Analyzer
	Log      *pterm.Logger

	// MaxUploadBytes caps POST /upload bodies; 0 means 200MB.
	MaxUploadBytes int64
	// SessionIdle drops sessions unused for this long; 0 keeps them forever.
	SessionIdle time.Duration
	PreviewRows int

	store *Store
}

// Handler builds the router. It must be called once per Server.
func (s *Server) Handler() http.Handler {
	if s.Log == nil {
		s.Log = logging.Discard()
	}
	if s.MaxUploadBytes <= 0 {
		s.MaxUploadBytes = defaultMaxUpload
	}
	if s.PreviewRows <= 0 {
		s.PreviewRows = defaultPreviewRows
	}
	s.store = NewStore(s.SessionIdle, func() *session.Handler {
		return session.NewHandler(s.Analyzer, s.Log)
	}, s.Log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/", s.handleIndex)
	r.Post("/upload", s.handleUpload)
	r.Post("/ask", s.handleAsk)
	r.Post("/reset", s.handleReset)
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.Log.Debug("http", s.Log.Args(
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
			"request_id", middleware.GetReqID(r.Context()),
		))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"time":     time.Now().UTC().Format(time.RFC3339Nano),
		"sessions": s.store.Len(),
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	st := s.store.Get(w, r)
	s.renderPage(w, st)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	st := s.store.Get(w, r)
	content, name, err := s.readUpload(w, r)

	st.mu.Lock()
	st.view = nil
	st.query = ""
	switch {
	case err != nil:
		st.flash = &flash{Level: "error", Text: err.Error()}
	default:
		if _, lerr := st.handler.Load(content, name); lerr != nil {
			st.flash = &flash{Level: "error", Text: render.Message(lerr)}
		} else {
			st.flash = &flash{Level: "success", Text: uploadedText(name)}
		}
	}
	st.mu.Unlock()
	s.renderPage(w, st)
}

func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) || strings.Contains(err.Error(), "request body too large") {
			return nil, "", fmt.Errorf("file exceeds the %dMB upload limit", s.MaxUploadBytes>>20)
		}
		return nil, "", fmt.Errorf("could not read the upload: %v", err)
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		return nil, "", errors.New("choose a CSV or Excel file to upload")
	}
	defer f.Close()
	if hdr.Size > s.MaxUploadBytes {
		return nil, "", fmt.Errorf("file exceeds the %dMB upload limit", s.MaxUploadBytes>>20)
	}
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, "", fmt.Errorf("could not read the upload: %v", err)
	}
	return content, filepath.Base(hdr.Filename), nil
}

func uploadedText(name string) string {
	if strings.EqualFold(filepath.Ext(name), ".csv") {
		return "CSV uploaded successfully"
	}
	return "Excel file uploaded successfully"
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	st := s.store.Get(w, r)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	text := strings.TrimSpace(r.FormValue("query"))
	intentRaw := r.FormValue("intent")

	st.mu.Lock()
	defer st.mu.Unlock()
	st.query = text
	st.intent = intentRaw
	st.view = nil

	intent, err := engine.ParseIntent(intentRaw)
	if err != nil {
		st.flash = &flash{Level: "error", Text: err.Error()}
		s.renderLocked(w, st)
		return
	}
	st.intent = string(intent)
	if text != "" {
		st.flash = &flash{Level: "info", Text: "Your query: " + text}
	}

	res, err := st.handler.Submit(r.Context(), text, intent)
	if err != nil {
		st.flash = &flash{Level: "error", Text: render.Message(err)}
		s.renderLocked(w, st)
		return
	}
	v := render.Build(res)
	st.view = &v
	s.renderLocked(w, st)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	st := s.store.Get(w, r)
	st.handler.Reset()
	st.mu.Lock()
	st.view = nil
	st.query = ""
	st.flash = nil
	st.mu.Unlock()
	s.renderPage(w, st)
}

func (s *Server) renderPage(w http.ResponseWriter, st *state) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s.renderLocked(w, st)
}

// renderLocked expects st.mu to be held.
func (s *Server) renderLocked(w http.ResponseWriter, st *state) {
	data := pageData{
		Title:      "InsightLoom",
		Accept:     strings.Join(parser.Extensions(), ","),
		Flash:      st.flash,
		Query:      st.query,
		Intent:     st.intent,
		View:       st.view,
		MaxUploadM: s.MaxUploadBytes >> 20,
	}
	if t := st.handler.Table(); t != nil {
		data.HasTable = true
		data.FileName = t.Name
		data.Columns = t.Columns
		data.TotalRows = t.NumRows()
		data.Preview = t.Head(s.PreviewRows).Rows
	}
	var buf bytes.Buffer
	if err := page.Execute(&buf, data); err != nil {
		s.Log.Error("template error", s.Log.Args("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
