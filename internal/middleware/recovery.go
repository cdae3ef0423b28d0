package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog"

	"questlog/internal/apierror"
)

// Recovery recovers from handler panics and answers with the standard
// error envelope instead of tearing down the connection.
func Recovery(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error().
						Interface("panic", rec).
						Str("path", r.URL.Path).
						Bytes("stack", debug.Stack()).
						Msg("recovered from panic")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_, _ = w.Write(apierror.InternalError("").ToJSON())
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
