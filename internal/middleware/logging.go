// internal/middleware/logging.go
//
// One structured line per request.
//
// Context
// -------
// RequestLogger runs after chi's RequestID middleware.  It builds a child of
// the base logger tagged with the request id, stores it in the request
// context (logger.WithContext) for handlers to enrich, and after the
// handler returns writes method, path, status, bytes, and duration.
//
// Notes
// -----
// • 5xx responses log at error level, 4xx at warn, everything else at info.
// • /healthz and /metrics are skipped to keep scrapes out of the log.
package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/yanizio/siteadmin/internal/logger"
)

var quietPaths = map[string]bool{"/healthz": true, "/metrics": true}

// RequestLogger returns the logging middleware bound to base.
func RequestLogger(base *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			l := base.With("request_id", chimw.GetReqID(r.Context()))
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r.WithContext(logger.WithContext(r.Context(), l)))

			if quietPaths[r.URL.Path] {
				return
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			kv := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
			}
			switch {
			case status >= 500:
				l.Errorw("request", kv...)
			case status >= 400:
				l.Warnw("request", kv...)
			default:
				l.Infow("request", kv...)
			}
		})
	}
}
