package shared

import "context"

// Identity carries the caller resolved by the identity middleware.
// Authentication itself happens upstream; requests arrive with the
// organization and user already established.
type Identity struct {
	OrganizationID int64
	UserID         int64
}

type identityContextKey struct{}

// ContextWithIdentity stores the identity in context.
func ContextWithIdentity(ctx context.Context, ident Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, ident)
}

// IdentityFromContext extracts the identity from context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	ident, ok := ctx.Value(identityContextKey{}).(Identity)
	if !ok || ident.OrganizationID == 0 {
		return Identity{}, false
	}
	return ident, true
}
