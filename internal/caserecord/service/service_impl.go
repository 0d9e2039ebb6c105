package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lib/pq"
	"github.com/opencrmhq/opencrm/internal/access"
	"github.com/opencrmhq/opencrm/internal/authorization"
	"github.com/opencrmhq/opencrm/internal/caserecord/domain"
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
	Store     repository.Repository[domain.Case]
	Access    *access.Checker
	Telemetry *telemetry.Metrics `optional:"true"`
}

type Service struct {
	log       *zap.Logger
	genID     *snowflake.Node
	store     repository.Repository[domain.Case]
	access    *access.Checker
	telemetry *telemetry.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		log:       p.Log.Named("case.service"),
		genID:     p.GenID,
		store:     p.Store,
		access:    p.Access,
		telemetry: p.Telemetry,
	}
}

func (s *Service) List(ctx context.Context, orgID snowflake.ID, q domain.ListQuery) ([]*domain.Case, int64, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}

	opts := []option.QueryOption{option.WithOrgID(orgID)}
	if status := strings.TrimSpace(q.Status); status != "" {
		if !domain.ValidStatus(status) {
			return nil, 0, domain.ErrInvalidStatus
		}
		opts = append(opts, option.WithWhere("status = ?", status))
	}
	if priority := strings.TrimSpace(q.Priority); priority != "" {
		if !domain.ValidPriority(priority) {
			return nil, 0, domain.ErrInvalidPriority
		}
		opts = append(opts, option.WithWhere("priority = ?", priority))
	}

	total, err := s.store.Count(ctx, &domain.Case{}, opts...)
	if err != nil {
		return nil, 0, err
	}
	cases, err := s.store.Find(ctx, &domain.Case{},
		append(opts,
			option.WithOrder("created_at DESC"),
			option.WithLimit(limit),
			option.WithOffset(q.Offset),
		)...,
	)
	if err != nil {
		return nil, 0, err
	}
	return cases, total, nil
}

func (s *Service) Get(ctx context.Context, orgID, caseID snowflake.ID) (*domain.Case, error) {
	record, err := s.store.FindOne(ctx, &domain.Case{ID: caseID}, option.WithOrgID(orgID))
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, domain.ErrNotFound
	}
	if err := s.access.Can(ctx, orgID, meta(record)); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *Service) Create(ctx context.Context, orgID snowflake.ID, req domain.CreateRequest) (*domain.Case, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	priority := strings.TrimSpace(req.Priority)
	if priority == "" {
		priority = domain.PriorityNormal
	}
	if !domain.ValidPriority(priority) {
		return nil, domain.ErrInvalidPriority
	}

	var createdBy snowflake.ID
	if profile, ok := orgcontext.ProfileFromContext(ctx); ok {
		createdBy = profile.ID
	}

	status := domain.StatusNew
	if len(req.AssignedTo) > 0 {
		status = domain.StatusAssigned
	}

	now := time.Now().UTC()
	record := &domain.Case{
		ID:          s.genID.Generate(),
		OrgID:       orgID,
		CreatedBy:   createdBy,
		AssignedTo:  int64sOrEmpty(req.AssignedTo),
		Teams:       int64sOrEmpty(req.Teams),
		AccountID:   req.AccountID,
		ContactID:   req.ContactID,
		Name:        name,
		CaseType:    strings.TrimSpace(req.CaseType),
		Status:      status,
		Priority:    priority,
		Description: strings.TrimSpace(req.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, record); err != nil {
		return nil, err
	}
	s.telemetry.RecordCreated("case")
	return record, nil
}

func (s *Service) Update(ctx context.Context, orgID, caseID snowflake.ID, req domain.UpdateRequest) (*domain.Case, error) {
	record, err := s.Get(ctx, orgID, caseID)
	if err != nil {
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
		status := strings.TrimSpace(*req.Status)
		if !domain.ValidStatus(status) {
			return nil, domain.ErrInvalidStatus
		}
		fields["status"] = status
		if status == domain.StatusClosed && record.ClosedAt == nil {
			fields["closed_at"] = time.Now().UTC()
		}
	}
	if req.Priority != nil {
		priority := strings.TrimSpace(*req.Priority)
		if !domain.ValidPriority(priority) {
			return nil, domain.ErrInvalidPriority
		}
		fields["priority"] = priority
	}
	setString(fields, "case_type", req.CaseType)
	setString(fields, "description", req.Description)
	if req.AssignedTo != nil {
		fields["assigned_to"] = pq.Int64Array(*req.AssignedTo)
	}
	if req.Teams != nil {
		fields["teams"] = pq.Int64Array(*req.Teams)
	}

	if err := s.store.Update(ctx, caseID, fields); err != nil {
		return nil, err
	}
	return s.Get(ctx, orgID, caseID)
}

func (s *Service) Delete(ctx context.Context, orgID, caseID snowflake.ID) error {
	if _, err := s.Get(ctx, orgID, caseID); err != nil {
		return err
	}
	return s.store.Delete(ctx, caseID)
}

func meta(c *domain.Case) authorization.ObjectMeta {
	return authorization.ObjectMeta{
		OrgID:      c.OrgID,
		CreatedBy:  c.CreatedBy,
		AssignedTo: c.AssignedTo,
		Teams:      c.Teams,
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
