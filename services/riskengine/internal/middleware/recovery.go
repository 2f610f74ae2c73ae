package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/riskfabric/cyberrisk/pkg/logger"
)

// internalError matches handlers.ErrorResponse for a 500.
const internalError = `{"error":"internal_error","message":"internal server error"}` + "\n"

// Recoverer turns a handler panic into a JSON 500. http.ErrAbortHandler is
// re-raised so net/http can drop the connection.
func Recoverer(log *logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}

				log.WithContext(r.Context()).Error("handler panic",
					"panic", rvr,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(internalError))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
