package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/odyssey-erp/odyssey-rbac/internal/shared"
)

func TestResolveUnionOfRoleNamesAndPermissions(t *testing.T) {
	p := Principal{Username: "hana", Roles: []Role{
		{Name: shared.RoleHR, Permissions: []Permission{{Name: shared.PermViewUser}}},
		{Name: shared.RoleUser, Permissions: []Permission{{Name: shared.PermViewUser}, {Name: shared.PermViewMenu}}},
	}}

	set := Resolve(p)

	assert.Equal(t, []string{shared.PermViewMenu, shared.PermViewUser, shared.RoleHR, shared.RoleUser}, set.Slice())
	assert.Equal(t, 4, set.Len())
}

func TestResolveEmptyRoles(t *testing.T) {
	assert.Zero(t, Resolve(Principal{Username: "nobody"}).Len())
}

func TestResolveIsDeterministic(t *testing.T) {
	p := Principal{Roles: []Role{
		{Name: "ROLE_A", Permissions: []Permission{{Name: "P1"}, {Name: "P2"}}},
		{Name: "ROLE_B", Permissions: []Permission{{Name: "P2"}}},
	}}
	assert.Equal(t, Resolve(p), Resolve(p))
}

func TestAuthoritySetIsCaseSensitive(t *testing.T) {
	set := NewAuthoritySet("CAN_VIEW_USER", " ", "")
	assert.True(t, set.Has("CAN_VIEW_USER"))
	assert.False(t, set.Has("can_view_user"))
	assert.Equal(t, 1, set.Len())
}
