// Package server wires the HTTP API: routes, middleware and lifecycle.
package server

import (
	"context"
	"net/http"
	"time"

	"researchplane/internal/server/handlers"
	"researchplane/internal/server/middleware"
)

// Options are the server-level settings applied around the handlers.
type Options struct {
	// APIToken protects every non-probe route. Empty disables auth.
	APIToken string

	// Rate limiting across all authenticated routes. RPS 0 disables it.
	RateLimitRPS   float64
	RateLimitBurst int

	// Metrics is the /metrics endpoint handler, if metrics are enabled.
	Metrics http.Handler
}

// Server is the HTTP server for the API.
type Server struct {
	httpServer *http.Server
}

// New creates a server. Probes and metrics are public; everything else
// sits behind auth and the shared rate limit.
func New(addr string, h *handlers.Handlers, opts Options) *Server {
	authMW := middleware.Auth(opts.APIToken)
	limitMW := middleware.RateLimit(opts.RateLimitRPS, opts.RateLimitBurst)
	protected := func(fn http.HandlerFunc) http.Handler {
		return authMW(limitMW(fn))
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics)
	}

	mux.Handle("POST /jobs", protected(h.SubmitJob))
	mux.Handle("GET /jobs", protected(h.ListJobs))
	mux.Handle("GET /jobs/{id}", protected(h.GetJob))

	mux.Handle("GET /artifacts/{id}", protected(h.GetArtifact))
	mux.Handle("GET /artifacts/{id}/lineage", protected(h.GetArtifactLineage))

	mux.Handle("POST /audio", protected(h.QueueAudio))
	mux.Handle("GET /audio/{id}", protected(h.GetPendingAudio))

	// Called by the execution service; it authenticates with the same
	// bearer token it was configured with.
	mux.Handle("POST /webhooks/audio", protected(h.AudioWebhook))

	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      middleware.RequestID(mux),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
	}
}

// Run starts the HTTP server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		shutDownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return s.Shutdown(shutDownCtx)
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
