package shared

import "context"

// Tier describes how much trust a principal was established with.
type Tier string

const (
	// TierStaff principals authenticated with a session token.
	TierStaff Tier = "staff"
	// TierParticipant principals only presented a participant code. They never pass
	// session validation and are limited to pages granted to the participant role.
	TierParticipant Tier = "participant"
)

// ParticipantRole is the role name participant principals resolve permissions under.
const ParticipantRole = "participant"

// Principal is the authenticated identity derived from a valid session.
type Principal struct {
	UserID      int64  `json:"userId"`
	Role        string `json:"role"`
	DisplayName string `json:"displayName"`
	Tier        Tier   `json:"tier"`
	// SessionToken is kept for CSRF derivation and logout; never serialised.
	SessionToken string `json:"-"`
	// RemoteAddr is the requester network origin recorded in audit entries.
	RemoteAddr string `json:"-"`
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}
