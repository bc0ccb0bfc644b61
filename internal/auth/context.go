package auth

import "context"

type contextKey string

const contextKeyIdentity contextKey = "auth.identity"

// Identity is the authenticated caller.
type Identity struct {
	UserID   int64
	Username string
	Role     Role
}

// WithIdentity stores auth identity details in context.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, contextKeyIdentity, identity)
}

// IdentityFromContext extracts the identity from context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	identity, ok := ctx.Value(contextKeyIdentity).(Identity)
	return identity, ok
}

// RoleFromContext extracts role from context.
func RoleFromContext(ctx context.Context) Role {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return ""
	}
	return identity.Role
}
