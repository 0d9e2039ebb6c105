package authorization

import (
	"github.com/bwmarrin/snowflake"
	orgdomain "github.com/opencrmhq/opencrm/internal/organization/domain"
)

// ObjectMeta is the access-relevant slice of an org-scoped record.
// Repositories populate it explicitly; predicates never probe the
// record itself.
type ObjectMeta struct {
	OrgID      snowflake.ID
	CreatedBy  snowflake.ID
	AssignedTo []int64
	Teams      []int64
}

// IsOrgMember reports whether profile is an active member of orgID.
// Nil profile or zero org denies.
func IsOrgMember(profile *orgdomain.Profile, orgID snowflake.ID) bool {
	if profile == nil || orgID == 0 {
		return false
	}
	return profile.IsActive && profile.OrgID == orgID
}

// IsOrgAdmin reports whether profile is an active admin of orgID.
func IsOrgAdmin(profile *orgdomain.Profile, orgID snowflake.ID) bool {
	return IsOrgMember(profile, orgID) && profile.Role == orgdomain.RoleAdmin
}

// HasSalesAccess reports whether profile may use the sales module
// (leads, opportunities). Admins always may.
func HasSalesAccess(profile *orgdomain.Profile, orgID snowflake.ID) bool {
	if !IsOrgMember(profile, orgID) {
		return false
	}
	return profile.Role == orgdomain.RoleAdmin || profile.HasSalesAccess
}

// HasMarketingAccess reports whether profile may use the marketing
// module. Admins always may.
func HasMarketingAccess(profile *orgdomain.Profile, orgID snowflake.ID) bool {
	if !IsOrgMember(profile, orgID) {
		return false
	}
	return profile.Role == orgdomain.RoleAdmin || profile.HasMarketingAccess
}

// CanAccessObject decides object-level access. A tenant mismatch denies
// unconditionally: no role, ownership or team grant ever overrides org
// isolation. Within the org, access is granted to admins, the creator,
// direct assignees, and members of a team the object is assigned to.
// profileTeams lists the teams the profile belongs to within the org.
func CanAccessObject(profile *orgdomain.Profile, orgID snowflake.ID, obj ObjectMeta, profileTeams []snowflake.ID) bool {
	if !IsOrgMember(profile, orgID) {
		return false
	}
	if obj.OrgID == 0 || obj.OrgID != orgID {
		return false
	}
	if profile.Role == orgdomain.RoleAdmin {
		return true
	}
	if obj.CreatedBy != 0 && obj.CreatedBy == profile.ID {
		return true
	}
	for _, assignee := range obj.AssignedTo {
		if assignee == int64(profile.ID) {
			return true
		}
	}
	for _, team := range obj.Teams {
		for _, membership := range profileTeams {
			if team == int64(membership) {
				return true
			}
		}
	}
	return false
}
