package http

import "context"

type contextKey string

const (
	requestIDContextKey contextKey = "pagegen/request-id"
	viewerContextKey    contextKey = "pagegen/viewer-id"
)

// RequestIDFromContext extracts the request identifier from the context when available.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if value, ok := ctx.Value(requestIDContextKey).(string); ok {
		return value
	}
	return ""
}

// ViewerIDFromContext returns the authenticated user id, or 0 for anonymous requests.
func ViewerIDFromContext(ctx context.Context) int64 {
	if ctx == nil {
		return 0
	}
	if value, ok := ctx.Value(viewerContextKey).(int64); ok {
		return value
	}
	return 0
}
