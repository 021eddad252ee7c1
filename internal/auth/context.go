package auth

import "sort"

// PermissionSet is a flat set of permission names held by a subject.
type PermissionSet map[string]struct{}

// NewPermissionSet builds a set from permission names.
func NewPermissionSet(names []string) PermissionSet {
	set := make(PermissionSet, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}

	return set
}

// Has reports whether the set contains the named permission.
func (p PermissionSet) Has(name string) bool {
	_, ok := p[name]
	return ok
}

// HasAll reports whether every named permission is in the set.
func (p PermissionSet) HasAll(names []string) bool {
	for _, name := range names {
		if !p.Has(name) {
			return false
		}
	}

	return true
}

// HasAny reports whether at least one named permission is in the set.
func (p PermissionSet) HasAny(names []string) bool {
	for _, name := range names {
		if p.Has(name) {
			return true
		}
	}

	return false
}

// Names returns the sorted permission names in the set.
func (p PermissionSet) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// AuthUser is the resolved acting identity attached to a request after
// authentication: the identity row joined with its role and the role's
// permission names.
type AuthUser struct {
	ID          string
	Email       string
	FullName    string
	Phone       *string
	RoleID      string
	RoleName    string
	KordaID     *string
	IsActive    bool
	Permissions PermissionSet
}

// ScopedKorda returns the korda ID the user is branch-scoped to.
// Users without a korda reference act at national scope and are not
// row-restricted.
func (u *AuthUser) ScopedKorda() (string, bool) {
	if u.KordaID == nil || *u.KordaID == "" {
		return "", false
	}

	return *u.KordaID, true
}
