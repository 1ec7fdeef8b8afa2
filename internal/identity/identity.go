// Package identity carries the authenticated caller through the request
// context, from the auth middleware to role checks, handlers and logs.
package identity

import (
	"context"

	"github.com/ErlanBelekov/account-service/internal/domain"
)

type ctxKey struct{}

type Identity struct {
	UserID string
	Role   domain.Role
	Active bool
}

// WithIdentity returns a copy of ctx with the identity attached.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext extracts the identity from ctx. ok is false when the
// request never passed the auth middleware.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}
