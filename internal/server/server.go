// Package server exposes the comparison orchestrator over HTTP.
//
// Routes:
//
//	GET    /healthz
//	GET    /metrics
//	GET    /api/compare?pkg=npm:react&pkg=pypi:flask[&refresh=all]
//	GET    /api/compare/pair?a=npm:react&b=npm:preact
//	GET    /api/suggestions?ecosystem=npm&q=rea[&limit=10]
//	POST   /api/sessions
//	GET    /api/sessions/{id}[?wait=true]
//	PUT    /api/sessions/{id}/packages
//	POST   /api/sessions/{id}/refetch
//	POST   /api/sessions/{id}/prune
//	DELETE /api/sessions/{id}
//
// Errors are returned as {"error": {"code": ..., "message": ..., "hint": ...}}
// with the codes of package errors.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/stackrank/pkg/catalog"
	"github.com/matzehuels/stackrank/pkg/orchestrator"
)

const (
	defaultSessionTTL  = 30 * time.Minute
	defaultWaitTimeout = 30 * time.Second
	shutdownTimeout    = 10 * time.Second
	maxBodyBytes       = 64 << 10
)

// Server serves the comparison API.
type Server struct {
	orch     *orchestrator.Orchestrator
	catalog  *catalog.Catalog
	sessions *sessionRegistry
	logger   *log.Logger
	metrics  http.Handler

	waitTimeout time.Duration
	router      chi.Router
}

// Option configures a [Server].
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetricsHandler serves h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithSessionTTL sets how long an idle session is kept.
func WithSessionTTL(d time.Duration) Option {
	return func(s *Server) { s.sessions = newSessionRegistry(d) }
}

// WithWaitTimeout bounds how long a request waits for fetches to settle.
func WithWaitTimeout(d time.Duration) Option {
	return func(s *Server) { s.waitTimeout = d }
}

// New creates a server. cat may be nil, in which case suggestions are
// unavailable.
func New(orch *orchestrator.Orchestrator, cat *catalog.Catalog, opts ...Option) *Server {
	s := &Server{
		orch:        orch,
		catalog:     cat,
		logger:      log.Default(),
		waitTimeout: defaultWaitTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sessions == nil {
		s.sessions = newSessionRegistry(defaultSessionTTL)
	}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.SetHeader("Content-Type", "application/json"))

		r.Get("/compare", s.handleCompare)
		r.Get("/compare/pair", s.handlePair)
		r.Get("/suggestions", s.handleSuggestions)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.handleCreateSession)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetSession)
				r.Delete("/", s.handleDeleteSession)
				r.Put("/packages", s.handleSetPackages)
				r.Post("/refetch", s.handleRefetch)
				r.Post("/prune", s.handlePrune)
			})
		})
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).Round(time.Millisecond),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully and closes every session.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.sessions.closeAll()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("server stopping")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.sessions.closeAll()
	return err
}

// Close stops every session.
func (s *Server) Close() { s.sessions.closeAll() }
