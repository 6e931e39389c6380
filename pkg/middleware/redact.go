package middleware

import (
	"net/http"

	httputil "roomly/pkg/http"
)

// RedactPaths records a log-safe form of the request path, with the segment
// after any of prefixes masked. It must wrap every middleware that logs.
func RedactPaths(prefixes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			safe := httputil.RedactPath(r.URL.Path, prefixes...)
			next.ServeHTTP(w, r.WithContext(httputil.WithLogPath(r.Context(), safe)))
		})
	}
}
