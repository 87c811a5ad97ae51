package middleware

import (
	"net/http"
	"time"

	"github.com/ekaya-inc/ekaya-admin/pkg/metrics"
)

// Metrics records request duration per mux route. Like RequestLogger it must
// wrap the *http.ServeMux directly.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := wrapResponseWriter(w)

		next.ServeHTTP(wrapped, r)

		metrics.ObserveHTTPRequest(r.Method, routeOf(r), wrapped.statusCode, time.Since(start))
	})
}
