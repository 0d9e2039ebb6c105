package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lib/pq"
	"github.com/opencrmhq/opencrm/internal/authorization"
	"github.com/opencrmhq/opencrm/internal/orgcontext"
	"github.com/opencrmhq/opencrm/internal/team/domain"
	"github.com/opencrmhq/opencrm/pkg/db/option"
	"github.com/opencrmhq/opencrm/pkg/repository"
	"github.com/opencrmhq/opencrm/pkg/telemetry"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log       *zap.Logger
	GenID     *snowflake.Node
	Store     repository.Repository[domain.Team]
	Telemetry *telemetry.Metrics `optional:"true"`
}

type Service struct {
	log       *zap.Logger
	genID     *snowflake.Node
	store     repository.Repository[domain.Team]
	telemetry *telemetry.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		log:       p.Log.Named("team.service"),
		genID:     p.GenID,
		store:     p.Store,
		telemetry: p.Telemetry,
	}
}

func (s *Service) List(ctx context.Context, orgID snowflake.ID) ([]*domain.Team, error) {
	return s.store.Find(ctx, &domain.Team{},
		option.WithOrgID(orgID),
		option.WithOrder("created_at DESC"),
	)
}

func (s *Service) Get(ctx context.Context, orgID, teamID snowflake.ID) (*domain.Team, error) {
	team, err := s.store.FindOne(ctx, &domain.Team{ID: teamID}, option.WithOrgID(orgID))
	if err != nil {
		return nil, err
	}
	if team == nil {
		return nil, domain.ErrNotFound
	}
	return team, nil
}

func (s *Service) Create(ctx context.Context, orgID snowflake.ID, req domain.CreateRequest) (*domain.Team, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	var createdBy snowflake.ID
	if profile, ok := orgcontext.ProfileFromContext(ctx); ok {
		createdBy = profile.ID
	}

	users := req.Users
	if users == nil {
		users = []int64{}
	}

	now := time.Now().UTC()
	team := &domain.Team{
		ID:          s.genID.Generate(),
		OrgID:       orgID,
		CreatedBy:   createdBy,
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Users:       users,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, team); err != nil {
		return nil, err
	}
	s.telemetry.RecordCreated("team")
	return team, nil
}

func (s *Service) Update(ctx context.Context, orgID, teamID snowflake.ID, req domain.UpdateRequest) (*domain.Team, error) {
	team, err := s.Get(ctx, orgID, teamID)
	if err != nil {
		return nil, err
	}
	if err := s.canManage(ctx, orgID, team); err != nil {
		return nil, err
	}

	fields := map[string]any{"updated_at": time.Now().UTC()}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domain.ErrInvalidName
		}
		fields["name"] = name
	}
	if req.Description != nil {
		fields["description"] = strings.TrimSpace(*req.Description)
	}
	if req.Users != nil {
		fields["users"] = pq.Int64Array(*req.Users)
	}

	if err := s.store.Update(ctx, teamID, fields); err != nil {
		return nil, err
	}
	return s.Get(ctx, orgID, teamID)
}

func (s *Service) Delete(ctx context.Context, orgID, teamID snowflake.ID) error {
	team, err := s.Get(ctx, orgID, teamID)
	if err != nil {
		return err
	}
	if err := s.canManage(ctx, orgID, team); err != nil {
		return err
	}
	return s.store.Delete(ctx, teamID)
}

func (s *Service) TeamIDsForProfile(ctx context.Context, orgID, profileID snowflake.ID) ([]snowflake.ID, error) {
	teams, err := s.store.Find(ctx, &domain.Team{}, option.WithOrgID(orgID))
	if err != nil {
		return nil, err
	}
	// Membership arrays are scanned in Go so the lookup behaves the same
	// on every backend the dialect switch supports.
	var ids []snowflake.ID
	for _, team := range teams {
		for _, member := range team.Users {
			if member == int64(profileID) {
				ids = append(ids, team.ID)
				break
			}
		}
	}
	return ids, nil
}

// canManage allows admins and the team's creator to mutate it.
func (s *Service) canManage(ctx context.Context, orgID snowflake.ID, team *domain.Team) error {
	profile, ok := orgcontext.ProfileFromContext(ctx)
	if !ok {
		return authorization.ErrForbidden
	}
	if authorization.IsOrgAdmin(profile, orgID) {
		return nil
	}
	if team.CreatedBy != 0 && team.CreatedBy == profile.ID {
		return nil
	}
	return authorization.ErrForbidden
}
