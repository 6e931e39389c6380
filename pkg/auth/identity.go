package auth

import (
	"context"
	"roomly/pkg/model"
)

// Identity is the authenticated caller attached to a request context.
type Identity struct {
	UserID   string
	Username string
	Role     string
	// TokenID is the jti of the bearer token, empty for cookie sessions.
	TokenID string
}

func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == model.RoleAdmin
}

type ctxKey string

const (
	identityKey        ctxKey = "identity"
	credentialErrorKey ctxKey = "credential_error"
)

func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext returns the caller, or nil for anonymous requests.
func FromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey).(*Identity)
	return id
}
