// Package api provides the admin HTTP surface: triggering exports,
// re-running file imports and checking CRM connectivity.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/apphive/crm-handoff/internal/crm"
	"github.com/apphive/crm-handoff/internal/export"
)

// Exporter runs candidate exports. Satisfied by export.Orchestrator.
type Exporter interface {
	ExportCandidate(ctx context.Context, localCandidateID string, opts export.Options) (*export.Report, error)
	ExportFiles(ctx context.Context, localCandidateID string) error
}

// ServerOption configures the admin API server.
type ServerOption func(*serverConfig)

type serverConfig struct {
	middlewares []func(http.Handler) http.Handler
}

// WithMiddlewares adds middleware to the server.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// NewServer builds the HTTP router.
func NewServer(exporter Exporter, tokens crm.TokenSource, opts ...ServerOption) *chi.Mux {
	cfg := &serverConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	h := &handlers{exporter: exporter, tokens: tokens}

	r := chi.NewRouter()
	for _, mw := range cfg.middlewares {
		r.Use(mw)
	}

	r.Get("/healthz", h.health)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/exports/{candidateID}", h.exportCandidate)
		r.Post("/exports/{candidateID}/files", h.exportFiles)
		r.Get("/connect/check", h.checkConnect)
	})

	return r
}

// LoggingMiddleware logs each request with its status and duration.
func LoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
