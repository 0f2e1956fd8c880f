package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/nholik/aio-sentinel/internal/healthcheck"
	"github.com/nholik/aio-sentinel/internal/metrics"
	"github.com/nholik/aio-sentinel/internal/monitor"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 5 * time.Second

// ViewSource exposes the latest monitor view.
type ViewSource interface {
	Last() (monitor.View, bool)
}

// Routes bundles what the HTTP listeners serve.
type Routes struct {
	Tracker      *healthcheck.Tracker
	PollInterval time.Duration
	Metrics      *metrics.Metrics
	Views        ViewSource
}

// Start launches health and metrics HTTP servers as configured. When both
// ports are equal a single listener serves every route.
func Start(ctx context.Context, logger zerolog.Logger, routes Routes, healthPort, metricsPort int) {
	if healthPort == 0 && metricsPort == 0 {
		return
	}

	if healthPort > 0 && metricsPort > 0 && healthPort == metricsPort {
		r := newRouter(logger)
		registerHealthRoutes(r, routes)
		registerMetricsRoute(r, routes.Metrics)
		startServer(ctx, logger, r, healthPort, "health/metrics")
		return
	}

	if healthPort > 0 {
		r := newRouter(logger)
		registerHealthRoutes(r, routes)
		startServer(ctx, logger, r, healthPort, "health")
	}

	if metricsPort > 0 {
		r := newRouter(logger)
		registerMetricsRoute(r, routes.Metrics)
		startServer(ctx, logger, r, metricsPort, "metrics")
	}
}

// Handler returns a router serving every route on one handler.
func Handler(logger zerolog.Logger, routes Routes) http.Handler {
	r := newRouter(logger)
	registerHealthRoutes(r, routes)
	registerMetricsRoute(r, routes.Metrics)
	return r
}

func newRouter(logger zerolog.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.GetHead)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Second))
	r.Use(accessLog(logger))
	return r
}

func registerHealthRoutes(r chi.Router, routes Routes) {
	r.Get("/healthz", healthcheck.HealthHandler(routes.Tracker, routes.PollInterval))
	r.Get("/readyz", healthcheck.ReadyHandler(routes.Tracker))
	if routes.Views != nil {
		r.Get("/status", statusHandler(routes.Views))
	}
}

func registerMetricsRoute(r chi.Router, metricsCollector *metrics.Metrics) {
	if metricsCollector == nil {
		return
	}
	r.Method(http.MethodGet, "/metrics", metricsCollector.Handler())
}

func statusHandler(views ViewSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, ok := views.Last()
		if !ok {
			healthcheck.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no refresh cycle completed yet"})
			return
		}
		healthcheck.WriteJSON(w, http.StatusOK, view)
	}
}

func accessLog(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}

func startServer(ctx context.Context, logger zerolog.Logger, handler http.Handler, port int, label string) {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("server", label).Int("port", port).Msg("http server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("server", label).Int("port", port).Msg("http server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Str("server", label).Int("port", port).Msg("http server shutdown failed")
		}
	}()
}
