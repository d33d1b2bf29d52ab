package rbac

import (
	"sort"
	"strings"
)

// AuthoritySet is the flat, deduplicated set of role names and permission
// names held by a principal.
type AuthoritySet map[string]struct{}

// NewAuthoritySet builds a set from names, ignoring blanks.
func NewAuthoritySet(names ...string) AuthoritySet {
	set := make(AuthoritySet, len(names))
	for _, name := range names {
		set.add(name)
	}
	return set
}

func (s AuthoritySet) add(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	s[name] = struct{}{}
}

// Has reports membership. Matching is exact and case-sensitive.
func (s AuthoritySet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Len returns the number of authorities.
func (s AuthoritySet) Len() int {
	return len(s)
}

// Slice returns the authorities in lexical order.
func (s AuthoritySet) Slice() []string {
	out := make([]string, 0, len(s))
	for name := range s {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Resolve flattens a principal's roles into its effective authority set: each
// role contributes its own name plus the names of its permissions.
func Resolve(p Principal) AuthoritySet {
	set := make(AuthoritySet)
	for _, role := range p.Roles {
		set.add(role.Name)
		for _, perm := range role.Permissions {
			set.add(perm.Name)
		}
	}
	return set
}
