package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/opencrmhq/opencrm/internal/organization/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("organization.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, userID snowflake.ID, req domain.CreateOrganizationRequest) (*domain.Organization, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	now := time.Now().UTC()
	org := &domain.Organization{
		ID:        s.genID.Generate(),
		Name:      name,
		Slug:      slug.Make(name),
		Metadata:  datatypes.JSONMap{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	// Creating an org and its first admin profile is one unit; a
	// half-created org would be unreachable by anyone.
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.CreateOrganization(ctx, tx, org); err != nil {
			return err
		}
		profile := &domain.Profile{
			ID:                 s.genID.Generate(),
			OrgID:              org.ID,
			UserID:             userID,
			Role:               domain.RoleAdmin,
			IsActive:           true,
			HasSalesAccess:     true,
			HasMarketingAccess: true,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		return s.repo.CreateProfile(ctx, tx, profile)
	})
	if err != nil {
		return nil, err
	}
	return org, nil
}

func (s *Service) GetByID(ctx context.Context, orgID snowflake.ID) (*domain.Organization, error) {
	org, err := s.repo.FindOrganization(ctx, s.db, orgID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, domain.ErrNotFound
	}
	return org, nil
}

func (s *Service) ListByUser(ctx context.Context, userID snowflake.ID) ([]domain.OrganizationListItem, error) {
	return s.repo.ListByUser(ctx, s.db, userID)
}

func (s *Service) ActiveProfile(ctx context.Context, orgID, userID snowflake.ID) (*domain.Profile, error) {
	if orgID == 0 || userID == 0 {
		return nil, domain.ErrProfileNotFound
	}
	profile, err := s.repo.FindProfile(ctx, s.db, orgID, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, domain.ErrProfileNotFound
	}
	if !profile.IsActive {
		return nil, domain.ErrProfileInactive
	}
	return profile, nil
}

func (s *Service) AddProfile(ctx context.Context, orgID snowflake.ID, req domain.AddProfileRequest) (*domain.Profile, error) {
	role := strings.TrimSpace(strings.ToUpper(req.Role))
	if role != domain.RoleAdmin && role != domain.RoleUser {
		return nil, domain.ErrInvalidRole
	}

	existing, err := s.repo.FindProfile(ctx, s.db, orgID, req.UserID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrDuplicateMembership
	}

	now := time.Now().UTC()
	profile := &domain.Profile{
		ID:                 s.genID.Generate(),
		OrgID:              orgID,
		UserID:             req.UserID,
		Role:               role,
		IsActive:           true,
		HasSalesAccess:     req.HasSalesAccess,
		HasMarketingAccess: req.HasMarketingAccess,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.repo.CreateProfile(ctx, s.db, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

func (s *Service) DeactivateProfile(ctx context.Context, orgID, profileID snowflake.ID) error {
	return s.repo.DeactivateProfile(ctx, s.db, orgID, profileID)
}
