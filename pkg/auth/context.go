package auth

import "context"

// Identity is the resolved caller: tenant and user ids extracted from a
// verified bearer token. Every call that touches tenant-owned state must
// carry one in its context.
type Identity struct {
	TenantID    string
	UserID      string
	IsSuperuser bool
}

type identityKey struct{}

// WithIdentity attaches the identity to the context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom extracts the identity, reporting whether one is present.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok && id.TenantID != "" && id.UserID != ""
}
