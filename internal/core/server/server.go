// Package server wires the HTTP routes and runs the listener until the
// context is cancelled.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/mohammed-shakir/statsector/internal/core/config"
	"github.com/mohammed-shakir/statsector/internal/core/health"
	middleware "github.com/mohammed-shakir/statsector/internal/core/middleware"
	"github.com/mohammed-shakir/statsector/internal/core/router"
)

// Deps are the handlers behind the routes. Metrics may be nil.
type Deps struct {
	Lookup    router.LookupHandler
	Batch     router.BatchHandler
	Readiness health.ReadinessReporter
	Metrics   http.Handler
}

// NewHandler builds the full route tree. /metrics is mounted here unless
// cfg.MetricsAddr asks for a separate listener.
func NewHandler(cfg config.Config, logger *slog.Logger, d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS())

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(d.Readiness))
	if d.Metrics != nil && cfg.MetricsAddr == "" {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	r.Group(func(r chi.Router) {
		if cfg.RequestTimeout > 0 {
			r.Use(chimw.Timeout(cfg.RequestTimeout))
		}
		r.Get(router.RouteRoot, router.HandleRoot())
		r.Get(router.RouteLookup, router.HandleLookup(logger, d.Lookup))
		r.Post(router.RouteRoot, router.HandleBatch(logger, d.Batch, cfg.MaxBatchBytes))
	})
	return r
}

// Run serves until ctx is done, then shuts down gracefully.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, d Deps) error {
	writeTimeout := 60 * time.Second
	if cfg.RequestTimeout+5*time.Second > writeTimeout {
		writeTimeout = cfg.RequestTimeout + 5*time.Second
	}
	servers := []*http.Server{{
		Addr:              cfg.Addr,
		Handler:           NewHandler(cfg, logger, d),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}}
	if d.Metrics != nil && cfg.MetricsAddr != "" {
		mux := chi.NewRouter()
		mux.Method(http.MethodGet, "/metrics", d.Metrics)
		servers = append(servers, &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		})
	}

	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		go func() {
			logger.Info("http listen", "addr", srv.Addr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, srv := range servers {
		_ = srv.Shutdown(shutdownCtx)
	}
	return runErr
}
