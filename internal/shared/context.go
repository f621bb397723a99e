package shared

import "context"

// Identity describes the authenticated caller as resolved from the credential claims.
type Identity struct {
	AccountID int64
	Email     string
	Roles     []string
}

// HasRole reports whether the identity carries the named role claim.
func (id *Identity) HasRole(name string) bool {
	if id == nil {
		return false
	}
	for _, r := range id.Roles {
		if r == name {
			return true
		}
	}
	return false
}

type identityContextKey struct{}

// ContextWithIdentity stores the caller identity in context.
func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the caller identity from context, nil when anonymous.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityContextKey{}).(*Identity)
	return id
}
