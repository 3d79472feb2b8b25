// Package api exposes the HTTP surface of the assistant: the chat endpoint,
// lead and session listings, the property catalog, and a health check.
package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/inmobilia-pe/inmobilia-ai/internal/analytics"
	"github.com/inmobilia-pe/inmobilia-ai/internal/flow"
	"github.com/inmobilia-pe/inmobilia-ai/internal/store"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = ":8080"

// Opts holds configuration options for the API server.
type Opts struct {
	Addr string
}

// Option defines a functional option for server configuration.
type Option func(*Opts)

// WithAddr sets the listen address (host:port).
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// Server routes HTTP requests to the conversation flow and the store. It
// owns the in-process session registry.
type Server struct {
	flow    *flow.ConversationFlow
	store   store.Store
	tracker *analytics.Tracker
	addr    string

	mu       sync.RWMutex
	sessions map[string]*flow.Session
}

// NewServer creates the API server. The store and tracker may be nil; the
// endpoints that need them respond with 503 in that case.
func NewServer(conv *flow.ConversationFlow, st store.Store, tracker *analytics.Tracker, options ...Option) *Server {
	var opts Opts
	for _, opt := range options {
		opt(&opts)
	}
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}
	return &Server{
		flow:     conv,
		store:    st,
		tracker:  tracker,
		addr:     opts.Addr,
		sessions: make(map[string]*flow.Session),
	}
}

// Handler builds the route table. Exposed separately from Run so tests can
// drive the server through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/api/chat", s.chatHandler)
	mux.HandleFunc("/api/leads", s.leadsHandler)
	mux.HandleFunc("/api/leads/", s.leadsHandler)
	mux.HandleFunc("/api/sessions", s.sessionsHandler)
	mux.HandleFunc("/api/sessions/", s.sessionsHandler)
	mux.HandleFunc("/api/properties", s.propertiesHandler)
	return mux
}

// Run starts the HTTP server and blocks until it exits.
func (s *Server) Run() error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}
	slog.Info("Server.Run: API listening", "addr", s.addr)
	return srv.ListenAndServe()
}

// session returns the registered session for an ID, or nil.
func (s *Server) session(id string) *flow.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id]
}

// registerSession stores a new session under its ID.
func (s *Server) registerSession(sess *flow.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
}

// listSessions snapshots all registered sessions.
func (s *Server) listSessions() []*flow.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*flow.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}
