package middleware

import (
	"net/http"
)

// MaxRequestSize caps request bodies at limit bytes. Declared lengths over the
// limit are rejected up front, anything else is cut off while decoding.
func MaxRequestSize(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				writeJSONError(w, http.StatusRequestEntityTooLarge, `{"error":"Request body too large","code":"INVALID_INPUT"}`)
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}
