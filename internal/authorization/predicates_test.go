package authorization

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	orgdomain "github.com/opencrmhq/opencrm/internal/organization/domain"
	"github.com/stretchr/testify/assert"
)

const (
	orgA snowflake.ID = 101
	orgB snowflake.ID = 202
)

func activeProfile(role string, orgID snowflake.ID) *orgdomain.Profile {
	return &orgdomain.Profile{
		ID:                 7001,
		OrgID:              orgID,
		UserID:             9001,
		Role:               role,
		IsActive:           true,
		HasSalesAccess:     false,
		HasMarketingAccess: false,
	}
}

func TestIsOrgMember(t *testing.T) {
	member := activeProfile(orgdomain.RoleUser, orgA)

	assert.True(t, IsOrgMember(member, orgA))
	assert.False(t, IsOrgMember(member, orgB))
	assert.False(t, IsOrgMember(nil, orgA))
	assert.False(t, IsOrgMember(member, 0))

	inactive := activeProfile(orgdomain.RoleUser, orgA)
	inactive.IsActive = false
	assert.False(t, IsOrgMember(inactive, orgA))
}

func TestIsOrgAdmin(t *testing.T) {
	assert.True(t, IsOrgAdmin(activeProfile(orgdomain.RoleAdmin, orgA), orgA))
	assert.False(t, IsOrgAdmin(activeProfile(orgdomain.RoleUser, orgA), orgA))
	assert.False(t, IsOrgAdmin(activeProfile(orgdomain.RoleAdmin, orgA), orgB))
	assert.False(t, IsOrgAdmin(nil, orgA))
}

func TestModuleAccessFlags(t *testing.T) {
	user := activeProfile(orgdomain.RoleUser, orgA)
	assert.False(t, HasSalesAccess(user, orgA))
	assert.False(t, HasMarketingAccess(user, orgA))

	user.HasSalesAccess = true
	assert.True(t, HasSalesAccess(user, orgA))
	assert.False(t, HasSalesAccess(user, orgB))

	user.HasMarketingAccess = true
	assert.True(t, HasMarketingAccess(user, orgA))

	// Admins bypass module flags.
	admin := activeProfile(orgdomain.RoleAdmin, orgA)
	assert.True(t, HasSalesAccess(admin, orgA))
	assert.True(t, HasMarketingAccess(admin, orgA))

	admin.IsActive = false
	assert.False(t, HasSalesAccess(admin, orgA))
}

func TestCanAccessObjectTenantMismatchAlwaysDenies(t *testing.T) {
	admin := activeProfile(orgdomain.RoleAdmin, orgA)
	obj := ObjectMeta{
		OrgID:      orgB,
		CreatedBy:  admin.ID,
		AssignedTo: []int64{int64(admin.ID)},
		Teams:      []int64{55},
	}

	// Every grant path is present, none may override the org boundary.
	assert.False(t, CanAccessObject(admin, orgA, obj, []snowflake.ID{55}))
	assert.False(t, CanAccessObject(admin, orgB, obj, []snowflake.ID{55}))
	assert.False(t, CanAccessObject(admin, orgA, ObjectMeta{OrgID: 0}, nil))
}

func TestCanAccessObjectGrants(t *testing.T) {
	user := activeProfile(orgdomain.RoleUser, orgA)

	t.Run("admin", func(t *testing.T) {
		admin := activeProfile(orgdomain.RoleAdmin, orgA)
		assert.True(t, CanAccessObject(admin, orgA, ObjectMeta{OrgID: orgA}, nil))
	})

	t.Run("creator", func(t *testing.T) {
		obj := ObjectMeta{OrgID: orgA, CreatedBy: user.ID}
		assert.True(t, CanAccessObject(user, orgA, obj, nil))
	})

	t.Run("assignee", func(t *testing.T) {
		obj := ObjectMeta{OrgID: orgA, AssignedTo: []int64{1, int64(user.ID)}}
		assert.True(t, CanAccessObject(user, orgA, obj, nil))
	})

	t.Run("team", func(t *testing.T) {
		obj := ObjectMeta{OrgID: orgA, Teams: []int64{42}}
		assert.True(t, CanAccessObject(user, orgA, obj, []snowflake.ID{42}))
		assert.False(t, CanAccessObject(user, orgA, obj, []snowflake.ID{43}))
	})

	t.Run("unrelated", func(t *testing.T) {
		obj := ObjectMeta{OrgID: orgA, CreatedBy: 1, AssignedTo: []int64{2}, Teams: []int64{3}}
		assert.False(t, CanAccessObject(user, orgA, obj, nil))
	})

	t.Run("inactive", func(t *testing.T) {
		gone := activeProfile(orgdomain.RoleUser, orgA)
		gone.IsActive = false
		assert.False(t, CanAccessObject(gone, orgA, ObjectMeta{OrgID: orgA, CreatedBy: gone.ID}, nil))
	})
}
