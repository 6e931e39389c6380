package http

import (
	"context"
	"net/http"
	"strings"
)

type logPathKey struct{}

// RedactedSegment replaces path segments that carry credentials.
const RedactedSegment = "[redacted]"

// RedactPath masks the segment that follows each of prefixes in path.
func RedactPath(path string, prefixes ...string) string {
	for _, prefix := range prefixes {
		rest, ok := strings.CutPrefix(path, prefix)
		if !ok || rest == "" {
			continue
		}
		if _, tail, found := strings.Cut(rest, "/"); found {
			return prefix + RedactedSegment + "/" + tail
		}
		return prefix + RedactedSegment
	}
	return path
}

func WithLogPath(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, logPathKey{}, path)
}

// LogPath is the request path safe to write to logs. Requests that did not
// pass through the redaction middleware fall back to the raw path.
func LogPath(r *http.Request) string {
	if path, ok := r.Context().Value(logPathKey{}).(string); ok {
		return path
	}
	return r.URL.Path
}
