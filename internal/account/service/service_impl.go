package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lib/pq"
	"github.com/opencrmhq/opencrm/internal/access"
	"github.com/opencrmhq/opencrm/internal/account/domain"
	"github.com/opencrmhq/opencrm/internal/authorization"
	"github.com/opencrmhq/opencrm/internal/orgcontext"
	"github.com/opencrmhq/opencrm/pkg/db/option"
	"github.com/opencrmhq/opencrm/pkg/repository"
	"github.com/opencrmhq/opencrm/pkg/telemetry"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const defaultPageSize = 25

type Params struct {
	fx.In

	Log       *zap.Logger
	GenID     *snowflake.Node
	Store     repository.Repository[domain.Account]
	Access    *access.Checker
	Telemetry *telemetry.Metrics `optional:"true"`
}

type Service struct {
	log       *zap.Logger
	genID     *snowflake.Node
	store     repository.Repository[domain.Account]
	access    *access.Checker
	telemetry *telemetry.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		log:       p.Log.Named("account.service"),
		genID:     p.GenID,
		store:     p.Store,
		access:    p.Access,
		telemetry: p.Telemetry,
	}
}

func (s *Service) List(ctx context.Context, orgID snowflake.ID, q domain.ListQuery) ([]*domain.Account, int64, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}

	opts := []option.QueryOption{option.WithOrgID(orgID)}
	if status := strings.TrimSpace(q.Status); status != "" {
		opts = append(opts, option.WithWhere("status = ?", status))
	}

	total, err := s.store.Count(ctx, &domain.Account{}, opts...)
	if err != nil {
		return nil, 0, err
	}
	accounts, err := s.store.Find(ctx, &domain.Account{},
		append(opts,
			option.WithOrder("created_at DESC"),
			option.WithLimit(limit),
			option.WithOffset(q.Offset),
		)...,
	)
	if err != nil {
		return nil, 0, err
	}
	return accounts, total, nil
}

func (s *Service) Get(ctx context.Context, orgID, accountID snowflake.ID) (*domain.Account, error) {
	account, err := s.store.FindOne(ctx, &domain.Account{ID: accountID}, option.WithOrgID(orgID))
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, domain.ErrNotFound
	}
	if err := s.access.Can(ctx, orgID, meta(account)); err != nil {
		return nil, err
	}
	return account, nil
}

func (s *Service) Create(ctx context.Context, orgID snowflake.ID, req domain.CreateRequest) (*domain.Account, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	var createdBy snowflake.ID
	if profile, ok := orgcontext.ProfileFromContext(ctx); ok {
		createdBy = profile.ID
	}

	now := time.Now().UTC()
	account := &domain.Account{
		ID:             s.genID.Generate(),
		OrgID:          orgID,
		CreatedBy:      createdBy,
		AssignedTo:     int64sOrEmpty(req.AssignedTo),
		Teams:          int64sOrEmpty(req.Teams),
		Name:           name,
		Email:          strings.TrimSpace(req.Email),
		Phone:          strings.TrimSpace(req.Phone),
		Industry:       strings.TrimSpace(req.Industry),
		Website:        strings.TrimSpace(req.Website),
		BillingAddress: strings.TrimSpace(req.BillingAddress),
		Description:    strings.TrimSpace(req.Description),
		Status:         domain.StatusOpen,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.Create(ctx, account); err != nil {
		return nil, err
	}
	s.telemetry.RecordCreated("account")
	return account, nil
}

func (s *Service) Update(ctx context.Context, orgID, accountID snowflake.ID, req domain.UpdateRequest) (*domain.Account, error) {
	if _, err := s.Get(ctx, orgID, accountID); err != nil {
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
	if req.Status != nil {
		status := strings.TrimSpace(strings.ToLower(*req.Status))
		if status != domain.StatusOpen && status != domain.StatusClosed {
			return nil, domain.ErrInvalidStatus
		}
		fields["status"] = status
	}
	setString(fields, "email", req.Email)
	setString(fields, "phone", req.Phone)
	setString(fields, "industry", req.Industry)
	setString(fields, "website", req.Website)
	setString(fields, "billing_address", req.BillingAddress)
	setString(fields, "description", req.Description)
	if req.AssignedTo != nil {
		fields["assigned_to"] = pq.Int64Array(*req.AssignedTo)
	}
	if req.Teams != nil {
		fields["teams"] = pq.Int64Array(*req.Teams)
	}

	if err := s.store.Update(ctx, accountID, fields); err != nil {
		return nil, err
	}
	return s.Get(ctx, orgID, accountID)
}

func (s *Service) Delete(ctx context.Context, orgID, accountID snowflake.ID) error {
	if _, err := s.Get(ctx, orgID, accountID); err != nil {
		return err
	}
	return s.store.Delete(ctx, accountID)
}

func meta(a *domain.Account) authorization.ObjectMeta {
	return authorization.ObjectMeta{
		OrgID:      a.OrgID,
		CreatedBy:  a.CreatedBy,
		AssignedTo: a.AssignedTo,
		Teams:      a.Teams,
	}
}

func int64sOrEmpty(vals []int64) pq.Int64Array {
	if vals == nil {
		return pq.Int64Array{}
	}
	return pq.Int64Array(vals)
}

func setString(fields map[string]any, column string, val *string) {
	if val != nil {
		fields[column] = strings.TrimSpace(*val)
	}
}
