package auth

import (
	"context"
	"slices"

	firebaseauth "firebase.google.com/go/v4/auth"
)

// Identity is the authenticated principal attached to a request.
type Identity struct {
	UID   string
	Email string
	Roles []Role

	token *firebaseauth.Token
}

// Token exposes the decoded Firebase ID token, nil for API-key callers.
func (i *Identity) Token() *firebaseauth.Token {
	if i == nil {
		return nil
	}
	return i.token
}

// HasRole reports whether the identity carries role.
func (i *Identity) HasRole(role Role) bool {
	return i != nil && slices.Contains(i.Roles, role)
}

// Can reports whether any of the identity roles grants capability.
func (i *Identity) Can(capability Capability) bool {
	if i == nil {
		return false
	}
	return slices.Contains(Capabilities(i.Roles...), capability)
}

// CanAny reports whether the identity holds at least one of the capabilities.
func (i *Identity) CanAny(capabilities ...Capability) bool {
	for _, capability := range capabilities {
		if i.Can(capability) {
			return true
		}
	}
	return false
}

// RoleNames returns the roles as plain strings.
func (i *Identity) RoleNames() []string {
	if i == nil {
		return nil
	}
	out := make([]string, len(i.Roles))
	for idx, role := range i.Roles {
		out[idx] = string(role)
	}
	return out
}

type identityKey struct{}

// WithIdentity stores the identity within the context for downstream handlers.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext retrieves the identity previously stored in context.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(*Identity)
	if !ok || identity == nil {
		return nil, false
	}
	return identity, true
}
