package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lib/pq"
	"github.com/opencrmhq/opencrm/internal/access"
	"github.com/opencrmhq/opencrm/internal/authorization"
	"github.com/opencrmhq/opencrm/internal/orgcontext"
	"github.com/opencrmhq/opencrm/internal/task/domain"
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
	Store     repository.Repository[domain.Task]
	Access    *access.Checker
	Telemetry *telemetry.Metrics `optional:"true"`
}

type Service struct {
	log       *zap.Logger
	genID     *snowflake.Node
	store     repository.Repository[domain.Task]
	access    *access.Checker
	telemetry *telemetry.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		log:       p.Log.Named("task.service"),
		genID:     p.GenID,
		store:     p.Store,
		access:    p.Access,
		telemetry: p.Telemetry,
	}
}

func (s *Service) List(ctx context.Context, orgID snowflake.ID, q domain.ListQuery) ([]*domain.Task, int64, error) {
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

	total, err := s.store.Count(ctx, &domain.Task{}, opts...)
	if err != nil {
		return nil, 0, err
	}
	tasks, err := s.store.Find(ctx, &domain.Task{},
		append(opts,
			option.WithOrder("created_at DESC"),
			option.WithLimit(limit),
			option.WithOffset(q.Offset),
		)...,
	)
	if err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

func (s *Service) Get(ctx context.Context, orgID, taskID snowflake.ID) (*domain.Task, error) {
	task, err := s.store.FindOne(ctx, &domain.Task{ID: taskID}, option.WithOrgID(orgID))
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, domain.ErrNotFound
	}
	if err := s.access.Can(ctx, orgID, meta(task)); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *Service) Create(ctx context.Context, orgID snowflake.ID, req domain.CreateRequest) (*domain.Task, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, domain.ErrInvalidTitle
	}

	priority := strings.TrimSpace(req.Priority)
	if priority == "" {
		priority = domain.PriorityMedium
	}
	if !domain.ValidPriority(priority) {
		return nil, domain.ErrInvalidPriority
	}

	var createdBy snowflake.ID
	if profile, ok := orgcontext.ProfileFromContext(ctx); ok {
		createdBy = profile.ID
	}

	now := time.Now().UTC()
	task := &domain.Task{
		ID:          s.genID.Generate(),
		OrgID:       orgID,
		CreatedBy:   createdBy,
		AssignedTo:  int64sOrEmpty(req.AssignedTo),
		Teams:       int64sOrEmpty(req.Teams),
		AccountID:   req.AccountID,
		ContactID:   req.ContactID,
		Title:       title,
		Status:      domain.StatusNew,
		Priority:    priority,
		DueDate:     req.DueDate,
		Description: strings.TrimSpace(req.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, task); err != nil {
		return nil, err
	}
	s.telemetry.RecordCreated("task")
	return task, nil
}

func (s *Service) Update(ctx context.Context, orgID, taskID snowflake.ID, req domain.UpdateRequest) (*domain.Task, error) {
	task, err := s.Get(ctx, orgID, taskID)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{"updated_at": time.Now().UTC()}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, domain.ErrInvalidTitle
		}
		fields["title"] = title
	}
	if req.Status != nil {
		status := strings.TrimSpace(*req.Status)
		if !domain.ValidStatus(status) {
			return nil, domain.ErrInvalidStatus
		}
		fields["status"] = status
		if status == domain.StatusCompleted && task.CompletedAt == nil {
			fields["completed_at"] = time.Now().UTC()
		}
	}
	if req.Priority != nil {
		priority := strings.TrimSpace(*req.Priority)
		if !domain.ValidPriority(priority) {
			return nil, domain.ErrInvalidPriority
		}
		fields["priority"] = priority
	}
	if req.DueDate != nil {
		fields["due_date"] = *req.DueDate
	}
	if req.Description != nil {
		fields["description"] = strings.TrimSpace(*req.Description)
	}
	if req.AssignedTo != nil {
		fields["assigned_to"] = pq.Int64Array(*req.AssignedTo)
	}
	if req.Teams != nil {
		fields["teams"] = pq.Int64Array(*req.Teams)
	}

	if err := s.store.Update(ctx, taskID, fields); err != nil {
		return nil, err
	}
	return s.Get(ctx, orgID, taskID)
}

func (s *Service) Delete(ctx context.Context, orgID, taskID snowflake.ID) error {
	if _, err := s.Get(ctx, orgID, taskID); err != nil {
		return err
	}
	return s.store.Delete(ctx, taskID)
}

func meta(t *domain.Task) authorization.ObjectMeta {
	return authorization.ObjectMeta{
		OrgID:      t.OrgID,
		CreatedBy:  t.CreatedBy,
		AssignedTo: t.AssignedTo,
		Teams:      t.Teams,
	}
}

func int64sOrEmpty(vals []int64) pq.Int64Array {
	if vals == nil {
		return pq.Int64Array{}
	}
	return pq.Int64Array(vals)
}
