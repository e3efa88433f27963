package session

import "sort"

// Principal is the identity and authorization data resolved once at login.
//
// A Principal is immutable: its role and permission sets are copied on
// construction and never change for the lifetime of the session, even if the
// upstream realm changes. A new login is required to observe such changes.
type Principal struct {
	id          string
	roles       map[string]struct{}
	permissions map[string]struct{}
}

// NewPrincipal builds a principal from an identity and its resolved roles and
// permissions. Empty names and duplicates are dropped.
func NewPrincipal(id string, roles, permissions []string) Principal {
	return Principal{
		id:          id,
		roles:       toSet(roles),
		permissions: toSet(permissions),
	}
}

// ID returns the principal identity.
func (p Principal) ID() string {
	return p.id
}

// IsZero reports whether p carries no identity.
func (p Principal) IsZero() bool {
	return p.id == ""
}

func (p Principal) HasRole(role string) bool {
	_, ok := p.roles[role]
	return ok
}

func (p Principal) HasPermission(permission string) bool {
	_, ok := p.permissions[permission]
	return ok
}

// Roles returns the role names in sorted order.
func (p Principal) Roles() []string {
	return fromSet(p.roles)
}

// Permissions returns the permission names in sorted order.
func (p Principal) Permissions() []string {
	return fromSet(p.permissions)
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		if name == "" {
			continue
		}
		set[name] = struct{}{}
	}
	return set
}

func fromSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
