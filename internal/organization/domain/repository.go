package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	CreateOrganization(ctx context.Context, db *gorm.DB, org *Organization) error
	FindOrganization(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (*Organization, error)
	CreateProfile(ctx context.Context, db *gorm.DB, profile *Profile) error
	FindProfile(ctx context.Context, db *gorm.DB, orgID, userID snowflake.ID) (*Profile, error)
	ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]OrganizationListItem, error)
	DeactivateProfile(ctx context.Context, db *gorm.DB, orgID, profileID snowflake.ID) error
}
