package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/opencrmhq/opencrm/internal/organization/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) CreateOrganization(ctx context.Context, db *gorm.DB, org *domain.Organization) error {
	return db.WithContext(ctx).Create(org).Error
}

func (r *repo) FindOrganization(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (*domain.Organization, error) {
	var org domain.Organization
	err := db.WithContext(ctx).Where("id = ?", orgID).First(&org).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &org, nil
}

func (r *repo) CreateProfile(ctx context.Context, db *gorm.DB, profile *domain.Profile) error {
	return db.WithContext(ctx).Create(profile).Error
}

func (r *repo) FindProfile(ctx context.Context, db *gorm.DB, orgID, userID snowflake.ID) (*domain.Profile, error) {
	var profile domain.Profile
	err := db.WithContext(ctx).
		Where("org_id = ? AND user_id = ?", orgID, userID).
		First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]domain.OrganizationListItem, error) {
	var items []domain.OrganizationListItem
	err := db.WithContext(ctx).Raw(
		`SELECT o.id, o.name, o.slug, p.role, p.is_active
		 FROM organizations o
		 JOIN profiles p ON p.org_id = o.id
		 WHERE p.user_id = ? AND p.is_active
		 ORDER BY o.created_at`, userID,
	).Scan(&items).Error
	return items, err
}

func (r *repo) DeactivateProfile(ctx context.Context, db *gorm.DB, orgID, profileID snowflake.ID) error {
	result := db.WithContext(ctx).
		Model(&domain.Profile{}).
		Where("org_id = ? AND id = ?", orgID, profileID).
		Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}
