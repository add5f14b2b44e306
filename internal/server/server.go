// Package server provides the HTTP API for the workflow builder: chat,
// document upload, session management, and workflow review.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/orchestrator"
	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/otel"
	"github.com/fk-mspraja/FK-Visual-Workflow-Builder-sub000/internal/ratelimit"
)

const (
	defaultTimeout = 60 * time.Second
	maxJSONBody    = 1 << 20
)

// Server holds the dependencies of the HTTP API.
type Server struct {
	router      *chi.Mux
	orch        *orchestrator.Orchestrator
	limiter     *ratelimit.Limiter
	apiKeys     map[string]string
	corsOrigins []string
	maxUpload   int64
	timeout     time.Duration
	startTime   time.Time
}

// Option configures the Server.
type Option func(*Server)

// WithRateLimiter sets the per-caller rate limiter (optional).
func WithRateLimiter(l *ratelimit.Limiter) Option {
	return func(s *Server) { s.limiter = l }
}

// WithCORSOrigins sets allowed CORS origins (e.g. ["*"]).
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) { s.corsOrigins = origins }
}

// WithMaxUploadBytes overrides the upload size limit.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) { s.maxUpload = n }
}

// WithRequestTimeout sets the timeout for routes that do not call the oracle.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

// NewServer builds a Server. apiKeys maps key -> caller name; an empty map
// leaves the API open and identifies callers by client IP.
func NewServer(orch *orchestrator.Orchestrator, apiKeys map[string]string, opts ...Option) *Server {
	s := &Server{
		router:      chi.NewRouter(),
		orch:        orch,
		apiKeys:     apiKeys,
		corsOrigins: []string{"*"},
		maxUpload:   orch.Documents().MaxBytes(),
		timeout:     defaultTimeout,
		startTime:   time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.apiKeys == nil {
		s.apiKeys = make(map[string]string)
	}
	return s
}

// Routes returns the configured http.Handler. Routes that call the oracle
// run without the default request timeout; the orchestrator bounds them.
func (s *Server) Routes() http.Handler {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(otel.MiddlewareWithStatus())
	r.Use(CORSMiddleware(s.corsOrigins))

	// Unauthenticated
	r.Get("/health", s.handleHealth)

	r.Route("/api/workflow-agent", func(r chi.Router) {
		r.Use(AuthMiddleware(s.apiKeys))
		r.Use(RateLimitMiddleware(s.limiter))

		// Oracle-bound
		r.Post("/chat", s.handleChat)
		r.Post("/upload", s.handleUpload)
		r.Post("/sessions/{id}/compile", s.handleCompile)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.timeout))
			r.Get("/actions", s.handleActions)

			r.Get("/sessions", s.handleSessionsList)
			r.Get("/sessions/{id}", s.handleSessionGet)
			r.Delete("/sessions/{id}", s.handleSessionDelete)

			r.Get("/workflows", s.handleWorkflowsList)
			r.Get("/workflows/{id}", s.handleWorkflowGet)
			r.Post("/workflows/{id}/approve", s.handleWorkflowApprove)
			r.Post("/workflows/{id}/reject", s.handleWorkflowReject)
			r.Post("/workflows/{id}/submit", s.handleWorkflowSubmit)
		})
	})

	return r
}
