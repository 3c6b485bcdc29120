// Package api serves search sessions over HTTP. Each browser session owns an
// orchestrator, identified by a cookie, and state changes stream to the
// session's websocket listeners.
package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rubiojr/serp/pkg/facet"
	"github.com/rubiojr/serp/pkg/history"
	"github.com/rubiojr/serp/pkg/log"
	"github.com/rubiojr/serp/pkg/realtime"
	"github.com/rubiojr/serp/pkg/search"
)

const (
	sessionCookie = "serp_session"

	DefaultMaxSessions = 1024
	DefaultSessionTTL  = 30 * time.Minute
)

type Server struct {
	api      search.API
	registry atomic.Pointer[facet.Registry]
	history  *history.Store
	hub      *realtime.Hub
	logger   *log.Logger

	maxSessions int
	sessionTTL  time.Duration

	mu       sync.Mutex
	sessions *expirable.LRU[string, *search.Orchestrator]
}

type Option func(*Server)

// WithHistory persists each session's navigation in store.
func WithHistory(store *history.Store) Option {
	return func(s *Server) {
		s.history = store
	}
}

// WithSessionLimits bounds the live sessions. The least recently used
// session is dropped beyond max, and a session idle for ttl expires. A
// dropped session that comes back boots again from its history.
func WithSessionLimits(max int, ttl time.Duration) Option {
	return func(s *Server) {
		if max > 0 {
			s.maxSessions = max
		}
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

func WithHub(hub *realtime.Hub) Option {
	return func(s *Server) {
		if hub != nil {
			s.hub = hub
		}
	}
}

func NewServer(api search.API, reg *facet.Registry, opts ...Option) *Server {
	s := &Server{
		api:         api,
		hub:         realtime.NewHub(0),
		logger:      log.ForService("api"),
		maxSessions: DefaultMaxSessions,
		sessionTTL:  DefaultSessionTTL,
	}
	if reg == nil {
		reg = facet.Default()
	}
	s.registry.Store(reg)
	for _, opt := range opts {
		opt(s)
	}
	s.sessions = expirable.NewLRU[string, *search.Orchestrator](s.maxSessions, func(id string, _ *search.Orchestrator) {
		s.logger.Debugf("session %s evicted", id)
	}, s.sessionTTL)
	return s
}

// SetRegistry replaces the facet registry. Sessions created afterwards use
// the new one; existing sessions keep theirs.
func (s *Server) SetRegistry(reg *facet.Registry) {
	if reg != nil {
		s.registry.Store(reg)
	}
}

func (s *Server) Registry() *facet.Registry {
	return s.registry.Load()
}

func (s *Server) Hub() *realtime.Hub {
	return s.hub
}

// Handler returns the complete HTTP handler. JSON routes are gzip compressed;
// the websocket route is left alone.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	s.RegisterRoutes(api)

	root := http.NewServeMux()
	root.HandleFunc("GET /api/search/events", s.HandleEvents)
	root.Handle("/", gzhttp.GzipHandler(api))
	return CorsMiddleware(root)
}

// session returns the orchestrator of the request's session, creating the
// session and setting its cookie when needed.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (string, *search.Orchestrator) {
	id := ""
	if c, err := r.Cookie(sessionCookie); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			id = c.Value
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if o, ok := s.sessions.Get(id); ok {
		// re-adding refreshes the idle expiry
		s.sessions.Add(id, o)
		return id, o
	}
	if id == "" {
		id = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    id,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}

	var nav search.Navigator
	if s.history != nil {
		nav = s.history.Navigator(id)
	}
	o := search.New(s.api, nav, s.registry.Load(),
		search.WithHub(s.hub, id),
		search.WithLogger(log.ForService("search")),
	)
	s.sessions.Add(id, o)
	s.logger.Debugf("new session %s", id)
	return id, o
}

func (s *Server) sessionCount() int {
	return s.sessions.Len()
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Errorf("encoding JSON response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, error, message string) {
	s.writeJSON(w, status, ErrorResponse{
		Error:   error,
		Message: message,
	})
}

func CorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
