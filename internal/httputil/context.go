package httputil

import (
	"context"
	"net/http"
)

type contextKey string

const ownerIDKey contextKey = "ownerID"

// WithOwnerID stores the authenticated workspace owner on the request
func WithOwnerID(r *http.Request, ownerID string) *http.Request {
	return r.WithContext(ContextWithOwnerID(r.Context(), ownerID))
}

// ContextWithOwnerID stores the owner on a context
func ContextWithOwnerID(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerIDKey, ownerID)
}

// GetOwnerID returns the authenticated owner, or "" when the request is anonymous
func GetOwnerID(r *http.Request) string {
	ownerID, _ := r.Context().Value(ownerIDKey).(string)
	return ownerID
}
