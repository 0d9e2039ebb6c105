// Package domain contains persistence models for organizations and
// profiles.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Organization represents a tenant. Every org-scoped row in the system
// points back at one of these through its org_id column.
type Organization struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	Name      string            `gorm:"type:text;not null" json:"name"`
	Slug      string            `gorm:"type:text;not null;uniqueIndex:ux_organizations_slug" json:"slug"`
	Metadata  datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Organization) TableName() string { return "organizations" }

// Profile binds a user to an organization with a role and module
// access flags. Profiles are deactivated, never hard-deleted, so the
// membership history survives removal.
type Profile struct {
	ID                 snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID              snowflake.ID `gorm:"not null;index;uniqueIndex:ux_profiles_org_user,priority:1" json:"org_id"`
	UserID             snowflake.ID `gorm:"not null;index;uniqueIndex:ux_profiles_org_user,priority:2" json:"user_id"`
	Role               string       `gorm:"type:text;not null" json:"role"`
	IsActive           bool         `gorm:"not null;default:true" json:"is_active"`
	HasSalesAccess     bool         `gorm:"not null;default:false" json:"has_sales_access"`
	HasMarketingAccess bool         `gorm:"not null;default:false" json:"has_marketing_access"`
	Phone              string       `gorm:"type:text" json:"phone"`
	AlternatePhone     string       `gorm:"type:text" json:"alternate_phone"`
	DateOfJoining      *time.Time   `json:"date_of_joining,omitempty"`
	CreatedAt          time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt          time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Profile) TableName() string { return "profiles" }

// IsAdmin reports whether the profile carries the admin role.
func (p *Profile) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}
