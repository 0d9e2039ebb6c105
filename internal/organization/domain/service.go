package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

var (
	ErrNotFound            = errors.New("organization_not_found")
	ErrProfileNotFound     = errors.New("profile_not_found")
	ErrProfileInactive     = errors.New("profile_inactive")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidRole         = errors.New("invalid_role")
	ErrDuplicateMembership = errors.New("duplicate_membership")
)

type CreateOrganizationRequest struct {
	Name string `json:"name"`
}

type AddProfileRequest struct {
	UserID             snowflake.ID `json:"user_id"`
	Role               string       `json:"role"`
	HasSalesAccess     bool         `json:"has_sales_access"`
	HasMarketingAccess bool         `json:"has_marketing_access"`
}

type OrganizationListItem struct {
	ID        snowflake.ID `json:"id"`
	Name      string       `json:"name"`
	Slug      string       `json:"slug"`
	Role      string       `json:"role"`
	IsActive  bool         `json:"is_active"`
}

type Service interface {
	Create(ctx context.Context, userID snowflake.ID, req CreateOrganizationRequest) (*Organization, error)
	GetByID(ctx context.Context, orgID snowflake.ID) (*Organization, error)
	ListByUser(ctx context.Context, userID snowflake.ID) ([]OrganizationListItem, error)
	// ActiveProfile resolves the caller's active profile for an org.
	// Returns ErrProfileNotFound when no binding exists and
	// ErrProfileInactive when the binding has been deactivated;
	// callers must treat both as authorization failures.
	ActiveProfile(ctx context.Context, orgID, userID snowflake.ID) (*Profile, error)
	AddProfile(ctx context.Context, orgID snowflake.ID, req AddProfileRequest) (*Profile, error)
	DeactivateProfile(ctx context.Context, orgID, profileID snowflake.ID) error
}
