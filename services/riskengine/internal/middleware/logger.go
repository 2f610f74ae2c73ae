// Package middleware provides HTTP middleware functions.
package middleware

import (
	"log/slog"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/riskfabric/cyberrisk/pkg/logger"
)

// probePaths are logged at debug so kubelet polling does not flood the logs.
var probePaths = map[string]bool{
	"/healthz": true,
	"/readyz":  true,
}

// Logger writes one line per request. It also copies the chi request id
// into the context under logger.RequestIDKey for the handlers' loggers.
func Logger(log *logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			reqID := chimiddleware.GetReqID(r.Context())
			ctx := logger.SetContextValue(r.Context(), logger.RequestIDKey, reqID)
			next.ServeHTTP(rw, r.WithContext(ctx))

			level := slog.LevelInfo
			switch {
			case rw.Status() >= http.StatusInternalServerError:
				level = slog.LevelWarn
			case probePaths[r.URL.Path]:
				level = slog.LevelDebug
			}

			log.WithRequestID(reqID).Log(ctx, level, "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rw.Status(),
				"bytes", rw.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}
