package middleware

import (
	"context"

	"github.com/0x360x36/miauhome.cl/pkg/auth"
)

type ctxKey int

const (
	guestIDKey ctxKey = iota
	identityKey
)

func withValue(ctx context.Context, key ctxKey, value any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, value)
}

func valueOf[T any](ctx context.Context, key ctxKey) (T, bool) {
	var zero T
	if ctx == nil {
		return zero, false
	}
	v, ok := ctx.Value(key).(T)
	return v, ok
}

// WithGuestID stores the browser profile id GuestProfile resolved.
func WithGuestID(ctx context.Context, guestID string) context.Context {
	return withValue(ctx, guestIDKey, guestID)
}

// GuestIDFromContext returns the guest profile id, empty outside GuestProfile.
func GuestIDFromContext(ctx context.Context) string {
	id, _ := valueOf[string](ctx, guestIDKey)
	return id
}

// WithIdentity stores the bearer identity of an authenticated shopper.
func WithIdentity(ctx context.Context, identity *auth.Identity) context.Context {
	return withValue(ctx, identityKey, identity)
}

// IdentityFromContext returns the bearer identity, nil for guests.
func IdentityFromContext(ctx context.Context) *auth.Identity {
	identity, _ := valueOf[*auth.Identity](ctx, identityKey)
	return identity
}
