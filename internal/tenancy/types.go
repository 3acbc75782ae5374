package tenancy

import "time"

// Role is a string-backed role enum preserving the on-the-wire encoding
// used by the X-User-Roles header and the audit log.
type Role string

const (
	RoleViewer Role = "viewer"
	RoleEditor Role = "editor"
	RoleAdmin  Role = "admin"
)

// roleRank implements the total order viewer < editor < admin.
var roleRank = map[Role]int{
	RoleViewer: 1,
	RoleEditor: 2,
	RoleAdmin:  3,
}

// rank returns 0 for unrecognized roles so they never outrank a known role.
func (r Role) rank() int { return roleRank[r] }

// AtLeast reports whether r is at or above other in the role hierarchy.
func (r Role) AtLeast(other Role) bool { return r.rank() >= other.rank() }

// HighestRole returns the top-ranked role in roles, or "" if roles is empty.
func HighestRole(roles []Role) Role {
	var best Role
	for _, r := range roles {
		if r.rank() > best.rank() {
			best = r
		}
	}
	return best
}

// AccessLevel is a string-backed enum for policy grants, ordered
// NONE < READ < WRITE < ADMIN.
type AccessLevel string

const (
	AccessNone  AccessLevel = "NONE"
	AccessRead  AccessLevel = "READ"
	AccessWrite AccessLevel = "WRITE"
	AccessAdmin AccessLevel = "ADMIN"
)

var accessRank = map[AccessLevel]int{
	AccessNone:  0,
	AccessRead:  1,
	AccessWrite: 2,
	AccessAdmin: 3,
}

func (a AccessLevel) rank() int { return accessRank[a] }

// AtLeast reports whether a grants at least other.
func (a AccessLevel) AtLeast(other AccessLevel) bool { return a.rank() >= other.rank() }

// TenantContext is the per-request tenant identity carried through a
// logical task. Exactly one is in scope at a time; see Manager.
type TenantContext struct {
	WorkspaceID     string
	UserID          string
	Roles           []Role
	Permissions     map[string]bool
	ContextID       string
	IPAddress       string
	ParentContextID string
	IsBackground    bool
	CreatedAt       time.Time
}

// Validate enforces the invariant that workspace_id and user_id are
// non-empty.
func (c *TenantContext) Validate() error {
	if c.WorkspaceID == "" {
		return &InvalidContextError{Reason: "workspace_id is empty"}
	}
	if c.UserID == "" {
		return &InvalidContextError{Reason: "user_id is empty"}
	}
	return nil
}

// HighestRole returns the top role this context holds.
func (c *TenantContext) HighestRole() Role { return HighestRole(c.Roles) }

// HasRole reports whether the context directly carries role r (exact
// match, not hierarchy comparison).
func (c *TenantContext) HasRole(r Role) bool {
	for _, have := range c.Roles {
		if have == r {
			return true
		}
	}
	return false
}
