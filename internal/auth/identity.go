package auth

// Identity modeling for the access-control layer. Tokens sometimes carry
// a role claim and sometimes do not; rather than letting "no role"
// fall through authorization checks, the role is decided exactly once at
// token-verification time and every check switches exhaustively over the
// resulting variant.

import "strings"

// Role is the authorization scope attached to an identity. RoleNone is a
// real variant, not an absence: it marks an authenticated account with
// no assigned scope, and checks must handle it explicitly.
type Role string

const (
	RoleNone    Role = ""
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
	RolePatient Role = "patient"
)

// ParseRole normalizes a raw role string into one of the known variants.
// Unknown values collapse to RoleNone so a mistyped role never grants a
// scope it was not meant to have.
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleDoctor:
		return RoleDoctor
	case RoleAdmin:
		return RoleAdmin
	case RolePatient:
		return RolePatient
	default:
		return RoleNone
	}
}

// Identity is the authenticated caller extracted from a verified token.
type Identity struct {
	ID       uint64
	Username string
	Role     Role
}

// ResultScope describes how wide an identity's view of results is.
type ResultScope int

const (
	// ScopeAll grants unrestricted access to every result.
	ScopeAll ResultScope = iota
	// ScopeLinked restricts access to patients linked via doctor_patient;
	// the caller must consult the link table per patient.
	ScopeLinked
	// ScopeAny allows reading any result once authenticated. Unscoped and
	// patient identities keep this deliberately weak visibility; it is an
	// explicit decision here, not a fallthrough.
	ScopeAny
)

// ResultReadScope returns the result-visibility scope for the identity.
// The switch is exhaustive over the role variants.
func (id Identity) ResultReadScope() ResultScope {
	switch id.Role {
	case RoleAdmin:
		return ScopeAll
	case RoleDoctor:
		return ScopeLinked
	case RolePatient, RoleNone:
		return ScopeAny
	default:
		// Unknown roles never reach here (ParseRole collapses them), but
		// default to the narrowest behavior that still needs a link.
		return ScopeLinked
	}
}
