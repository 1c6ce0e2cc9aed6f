package auth

import (
	"context"

	"github.com/goliatone/go-router"
)

// DefaultContextKey is the request store key holding the authenticated user.
const DefaultContextKey = "user"

var userCtxKey = &contextKey{"user"}

type contextKey struct {
	name string
}

// WithContext sets the User in the given context
func WithContext(r context.Context, user *User) context.Context {
	return context.WithValue(r, userCtxKey, user)
}

// FromContext finds the user from the context.
func FromContext(ctx context.Context) (*User, bool) {
	raw, ok := ctx.Value(userCtxKey).(*User)
	return raw, ok && raw != nil
}

// UserFromRouter returns the user stored by ProtectedRoute. It checks the
// request store under key first and falls back to the request context.
func UserFromRouter(c router.Context, key string) (*User, bool) {
	if key == "" {
		key = DefaultContextKey
	}

	if user, ok := c.Get(key, nil).(*User); ok && user != nil {
		return user, true
	}

	return FromContext(c.Context())
}
