// Package server exposes the HTTP API: health, readiness, metrics, stored VODs
// and on-demand chat activity. It includes configurable CORS and injects
// correlation IDs into request contexts for consistent logging.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onnwee/chat-tender/backend/telemetry"
)

// NewMux returns the HTTP handler with all routes.
// The provided context bounds the rate limiter cleanup goroutine.
func NewMux(ctx context.Context, db *sql.DB) http.Handler {
	authCfg := loadAuthConfig()
	limiter := newIPRateLimiter(ctx, loadRateLimiterConfig())
	corsCfg := loadCORSConfig()

	handlers := NewHandlers(db)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", handlers.HandleHealthz)
	mux.HandleFunc("/readyz", handlers.HandleReadyz)
	mux.HandleFunc("/vods", handlers.HandleVodsList)
	mux.HandleFunc("/vods/", handlers.HandleVodsDispatcher)
	mux.HandleFunc("/runs/", handlers.HandleRunActivity)
	mux.HandleFunc("/admin/vods/", handlers.HandleAdminSaveActivity)

	// Activity endpoints do real work per request, so they share the limiter
	// with the admin routes.
	selective := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/admin/"):
			adminAuth(rateLimitMiddleware(mux, limiter), authCfg).ServeHTTP(w, r)
		case strings.HasPrefix(r.URL.Path, "/vods/") && strings.HasSuffix(r.URL.Path, "/activity"):
			rateLimitMiddleware(mux, limiter).ServeHTTP(w, r)
		default:
			mux.ServeHTTP(w, r)
		}
	})

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Reuse corr header if provided else generate
		corr := r.Header.Get("X-Correlation-ID")
		if corr == "" {
			corr = uuid.New().String()
		}
		ctx := telemetry.WithCorrelation(r.Context(), corr)
		w.Header().Set("X-Correlation-ID", corr)

		route := routeLabel(r.URL.Path)
		ctx, span := telemetry.StartSpan(ctx, "http-server", r.Method+" "+route,
			telemetry.HTTPMethodAttr(r.Method),
			telemetry.HTTPRouteAttr(route),
			telemetry.HTTPURLAttr(r.URL.String()),
		)
		defer span.End()

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		selective.ServeHTTP(rec, r.WithContext(ctx))

		telemetry.RecordHTTPRequest(route, rec.statusCode)
		telemetry.SetSpanHTTPStatus(span, rec.statusCode)
		if rec.statusCode >= 400 {
			code, msg := telemetry.ErrorStatus(fmt.Sprintf("HTTP %d", rec.statusCode))
			span.SetStatus(code, msg)
		}
		telemetry.LoggerWithCorr(ctx).Debug("request done",
			slog.String("component", "http"),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.statusCode),
			slog.Duration("elapsed", time.Since(start)))
	})
	return withCORSConfig(handler, corsCfg)
}

// routeLabel collapses ids out of a path so metrics and span names stay low
// cardinality.
func routeLabel(path string) string {
	switch {
	case strings.HasPrefix(path, "/admin/vods/"):
		return "/admin/vods/{id}/activity"
	case strings.HasPrefix(path, "/vods/"):
		return "/vods/{id}/activity"
	case strings.HasPrefix(path, "/runs/"):
		return "/runs/{id}/activity"
	case path == "/healthz", path == "/readyz", path == "/metrics", path == "/vods":
		return path
	}
	return "other"
}

// statusRecorder wraps ResponseWriter to capture status code
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

// Flush implements http.Flusher if the underlying ResponseWriter supports it
func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Start runs the HTTP server and shuts down gracefully on context cancellation.
func Start(ctx context.Context, db *sql.DB, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      NewMux(ctx, db),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		// Use WithoutCancel to inherit context values but allow shutdown to complete
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server shutdown error", slog.Any("err", err))
		}
	}()

	slog.Info("http server listening", slog.String("component", "http"), slog.String("addr", addr), slog.Bool("tracing", telemetry.IsTracingEnabled()))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("http server error", slog.Any("err", err))
		return err
	}
	return nil
}
