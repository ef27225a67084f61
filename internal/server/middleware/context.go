package middleware

import "context"

type contextKey struct{ name string }

var identityKey = contextKey{"identity"}

// Identity is the authenticated caller attached to the request context by
// RequireAuth and OptionalAuth. Immutable once set.
type Identity struct {
	UserID    string
	Username  string
	Email     string
	Roles     []string
	SessionID string
}

// HasRole reports whether the identity holds the given role.
func (id Identity) HasRole(role string) bool {
	for _, r := range id.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// WithIdentity returns a context carrying the authenticated identity.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// GetIdentity returns the identity from context and true if set; otherwise
// a zero Identity and false.
func GetIdentity(ctx context.Context) (Identity, bool) {
	v, ok := ctx.Value(identityKey).(Identity)
	return v, ok
}
