package middleware

import (
	"net/http"
	"runtime/debug"

	"paper-reader/internal/logging"
	"paper-reader/internal/metrics"
)

// Recovery turns a panicking handler into a generic 500 response.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			metrics.HTTPPanicsTotal.Inc()
			logging.Error("Panic serving %s %s: %v\n%s",
				sanitizeLogField(r.Method), sanitizeLogField(r.URL.Path), rec, debug.Stack())

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"Server error"}` + "\n"))
		}()
		next.ServeHTTP(w, r)
	})
}
