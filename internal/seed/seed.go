// Package seed bootstraps a fresh installation with a default
// organization and admin login so the server is usable out of the box.
package seed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	authdomain "github.com/opencrmhq/opencrm/internal/auth/domain"
	"github.com/opencrmhq/opencrm/internal/auth/password"
	leaddomain "github.com/opencrmhq/opencrm/internal/lead/domain"
	orgdomain "github.com/opencrmhq/opencrm/internal/organization/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultOrgName       = "Main"
	defaultAdminEmail    = "admin@opencrm.local"
	defaultAdminPassword = "admin"
)

// EnsureDefaultOrgAndAdmin seeds the default organization, the admin
// user and their admin profile. Safe to run on every startup.
func EnsureDefaultOrgAndAdmin(db *gorm.DB, node *snowflake.Node) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		org, err := ensureOrgTx(ctx, tx, node)
		if err != nil {
			return err
		}
		user, err := ensureAdminUserTx(ctx, tx, node)
		if err != nil {
			return err
		}
		return ensureAdminProfileTx(ctx, tx, node, org.ID, user.ID)
	})
}

// EnsureDemoData inserts a couple of example records in the default
// org so a new install has something to look at.
func EnsureDemoData(db *gorm.DB, node *snowflake.Node) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	ctx := context.Background()
	var org orgdomain.Organization
	if err := db.WithContext(ctx).Where("slug = ?", slug.Make(defaultOrgName)).First(&org).Error; err != nil {
		return err
	}

	var count int64
	if err := db.WithContext(ctx).Model(&leaddomain.Lead{}).Where("org_id = ?", org.ID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	now := time.Now().UTC()
	leads := []leaddomain.Lead{
		{
			ID:          node.Generate(),
			OrgID:       org.ID,
			Title:       "Website inquiry from Acme Corp",
			FirstName:   "Jordan",
			LastName:    "Reyes",
			Email:       "jordan@acme.example",
			CompanyName: "Acme Corp",
			Source:      "website",
			Status:      leaddomain.StatusNew,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		{
			ID:          node.Generate(),
			OrgID:       org.ID,
			Title:       "Referral from partner network",
			FirstName:   "Sam",
			LastName:    "Okafor",
			Email:       "sam@globex.example",
			CompanyName: "Globex",
			Source:      "referral",
			Status:      leaddomain.StatusNew,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}
	return db.WithContext(ctx).Create(&leads).Error
}

func ensureOrgTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node) (orgdomain.Organization, error) {
	orgSlug := slug.Make(defaultOrgName)

	var org orgdomain.Organization
	err := tx.WithContext(ctx).Where("slug = ?", orgSlug).First(&org).Error
	if err == nil {
		return org, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return org, err
	}

	now := time.Now().UTC()
	org = orgdomain.Organization{
		ID:        node.Generate(),
		Name:      defaultOrgName,
		Slug:      orgSlug,
		Metadata:  datatypes.JSONMap{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	return org, tx.WithContext(ctx).Create(&org).Error
}

func ensureAdminUserTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node) (authdomain.User, error) {
	email := strings.ToLower(defaultAdminEmail)

	var user authdomain.User
	err := tx.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return user, err
	}

	hashed, err := password.Hash(defaultAdminPassword)
	if err != nil {
		return user, err
	}

	// IsDefault marks the shipped credentials; login surfaces a
	// password_state of "default" until they are rotated.
	now := time.Now().UTC()
	user = authdomain.User{
		ID:           node.Generate(),
		Username:     "admin",
		Email:        email,
		PasswordHash: &hashed,
		IsDefault:    true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return user, tx.WithContext(ctx).Create(&user).Error
}

func ensureAdminProfileTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, orgID, userID snowflake.ID) error {
	var profile orgdomain.Profile
	err := tx.WithContext(ctx).Where("org_id = ? AND user_id = ?", orgID, userID).First(&profile).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	now := time.Now().UTC()
	profile = orgdomain.Profile{
		ID:                 node.Generate(),
		OrgID:              orgID,
		UserID:             userID,
		Role:               orgdomain.RoleAdmin,
		IsActive:           true,
		HasSalesAccess:     true,
		HasMarketingAccess: true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	return tx.WithContext(ctx).Create(&profile).Error
}
