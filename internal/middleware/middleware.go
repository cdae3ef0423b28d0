package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"questlog/internal/response"
)

type contextKey string

const RequestIDKey contextKey = "request_id"

// responseWriter captures what the handler wrote so the completion log can
// carry the status code and body size.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	bytes      int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

// RequestID tags each request with an id (an inbound X-Request-ID wins,
// otherwise a fresh uuid), stores a request-scoped logger in the context and
// emits the started/completed log pair. The completion entry records the
// status code, the matched platform and user key, and the sync source the
// handler reported.
func RequestID(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.New().String()
			}
			w.Header().Set("X-Request-ID", requestID)

			reqLogger := logger.With().
				Str("request_id", requestID).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Logger()

			ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
			ctx = reqLogger.WithContext(ctx)

			reqLogger.Info().
				Str("remote_addr", r.RemoteAddr).
				Msg("request started")

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r.WithContext(ctx))

			evt := reqLogger.Info().
				Int("status", rw.statusCode).
				Int("bytes", rw.bytes).
				Dur("duration", time.Since(start))
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if platform := rctx.URLParam("platform"); platform != "" {
					evt = evt.Str("platform", platform)
				}
				if userKey := rctx.URLParam("userKey"); userKey != "" {
					evt = evt.Str("user_key", userKey)
				}
			}
			if source := rw.Header().Get(response.SyncSourceHeader); source != "" {
				evt = evt.Str("sync_source", source)
			}
			evt.Msg("request completed")
		})
	}
}

// GetRequestID returns the id RequestID stored, empty when absent.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
