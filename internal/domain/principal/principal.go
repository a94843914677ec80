package principal

// Role is the persisted role tier of a principal (user|admin).
type Role int

const (
	RoleUser Role = iota
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// ParseRole maps a stored role field to a Role. Unknown values degrade to
// RoleUser so a corrupt record can never grant elevation.
func ParseRole(s string) Role {
	if s == "admin" {
		return RoleAdmin
	}
	return RoleUser
}

// Principal is the resolved identity of a request. It lives for the request
// lifetime only and is never persisted. Username and Email are
// non-authoritative display fields for logging and response shaping.
type Principal struct {
	ID       string
	Role     Role
	Username string
	Email    string
}

// Capability is the ordered access tier a route requires.
// Anonymous < User < Admin; a holder satisfies every tier at or below its own.
type Capability int

const (
	CapAnonymous Capability = iota
	CapUser
	CapAdmin
)

func (c Capability) String() string {
	switch c {
	case CapAnonymous:
		return "anonymous"
	case CapUser:
		return "user"
	case CapAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// Satisfies reports whether a holder of capability c may access a route
// requiring the given tier.
func (c Capability) Satisfies(required Capability) bool {
	return c >= required
}

// Capability returns the access tier a principal's role grants.
func (p *Principal) Capability() Capability {
	if p == nil {
		return CapAnonymous
	}
	if p.Role == RoleAdmin {
		return CapAdmin
	}
	return CapUser
}
