package web

import (
	"net/http"
	"sync"
	"time"

	"github.com/KaramelBytes/insightloom/internal/logging"
	"github.com/KaramelBytes/insightloom/internal/render"
	"github.com/KaramelBytes/insightloom/internal/session"
	"github.com/google/uuid"
	"github.com/pterm/pterm"
)

const cookieName = "insightloom_session"

// flash is the one-line status shown under the uploader.
type flash struct {
	Level string // success, info, warning, error
	Text  string
}

// state is everything the page shows for one browser session.
type state struct {
	handler *session.Handler

	mu       sync.Mutex
	lastSeen time.Time
	flash    *flash
	query    string
	intent   string
	view     *render.View
}

// Store keeps browser sessions in memory. Idle sessions are dropped, with
// their tables, the next time the store is touched.
type Store struct {
	newHandler func() *session.Handler
	idle       time.Duration
	now        func() time.Time
	log        *pterm.Logger

	mu    sync.Mutex
	items map[string]*state
}

func NewStore(idle time.Duration, newHandler func() *session.Handler, log *pterm.Logger) *Store {
	if log == nil {
		log = logging.Discard()
	}
	return &Store{
		newHandler: newHandler,
		idle:       idle,
		now:        time.Now,
		log:        log,
		items:      map[string]*state{},
	}
}

// Get returns the session named by the request cookie, creating one (and
// setting the cookie) when it is missing or expired.
func (s *Store) Get(w http.ResponseWriter, r *http.Request) *state {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.sweep(now)

	if c, err := r.Cookie(cookieName); err == nil {
		if st, ok := s.items[c.Value]; ok {
			st.lastSeen = now
			return st
		}
	}
	id := uuid.NewString()
	st := &state{handler: s.newHandler(), lastSeen: now}
	s.items[id] = st
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return st
}

// Len reports live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep(s.now())
	return len(s.items)
}

func (s *Store) sweep(now time.Time) {
	if s.idle <= 0 {
		return
	}
	for id, st := range s.items {
		if now.Sub(st.lastSeen) > s.idle {
			st.handler.Reset()
			delete(s.items, id)
			s.log.Debug("session expired", s.log.Args("id", id[:8]))
		}
	}
}
