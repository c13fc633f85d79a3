package auth

import "context"

type identityContextKey struct{}

// Identity is the authenticated caller as established by the guard.
type Identity struct {
	UserID int64
	Token  string
	// Scopes come from the signed token, Rights from the database at
	// request time.
	Scopes RightSet
	Rights RightSet
}

// Allows reports whether the caller holds right on both layers.
func (i Identity) Allows(right string) bool {
	return i.Scopes.Has(right) && i.Rights.Has(right)
}

// CanActOn reports whether the caller may act on a resource owned by ownerID
// given the self and all variants of a right.
func (i Identity) CanActOn(ownerID int64, selfRight, allRight string) bool {
	if i.Allows(allRight) {
		return true
	}
	return i.UserID == ownerID && i.Allows(selfRight)
}

// ContextWithIdentity attaches the authenticated identity to the context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, &id)
}

// IdentityFromContext extracts the identity placed by the guard middleware.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	v, ok := ctx.Value(identityContextKey{}).(*Identity)
	if !ok || v == nil {
		return Identity{}, false
	}
	return *v, true
}

// UserIDFromContext returns the authenticated user id, if any.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := IdentityFromContext(ctx)
	if !ok {
		return 0, false
	}
	return id.UserID, true
}
