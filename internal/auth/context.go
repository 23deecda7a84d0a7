// ABOUTME: Authentication context for tracking identity through request handlers
// ABOUTME: Provides WithUser/UserFromContext for propagating the caller via context

package auth

import (
	"context"

	"github.com/partforge/partforge/internal/store"
)

// userContextKey is the key type for storing the caller in context.Context.
type userContextKey struct{}

// WithUser returns a new context with the authenticated user attached.
func WithUser(ctx context.Context, u *store.User) context.Context {
	return context.WithValue(ctx, userContextKey{}, u)
}

// UserFromContext retrieves the authenticated user from the context,
// returning nil if not present.
func UserFromContext(ctx context.Context) *store.User {
	val := ctx.Value(userContextKey{})
	if val == nil {
		return nil
	}
	u, ok := val.(*store.User)
	if !ok {
		return nil
	}
	return u
}

// MustUserFromContext retrieves the authenticated user, panicking if the
// auth middleware did not run.
func MustUserFromContext(ctx context.Context) *store.User {
	u := UserFromContext(ctx)
	if u == nil {
		panic("auth: user not found in context")
	}
	return u
}
