package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lib/pq"
	"github.com/opencrmhq/opencrm/internal/access"
	"github.com/opencrmhq/opencrm/internal/authorization"
	"github.com/opencrmhq/opencrm/internal/opportunity/domain"
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
	Store     repository.Repository[domain.Opportunity]
	Items     repository.Repository[domain.LineItem]
	Access    *access.Checker
	Telemetry *telemetry.Metrics `optional:"true"`
}

type Service struct {
	log       *zap.Logger
	genID     *snowflake.Node
	store     repository.Repository[domain.Opportunity]
	items     repository.Repository[domain.LineItem]
	access    *access.Checker
	telemetry *telemetry.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		log:       p.Log.Named("opportunity.service"),
		genID:     p.GenID,
		store:     p.Store,
		items:     p.Items,
		access:    p.Access,
		telemetry: p.Telemetry,
	}
}

func (s *Service) List(ctx context.Context, orgID snowflake.ID, q domain.ListQuery) ([]*domain.Opportunity, int64, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}

	opts := []option.QueryOption{option.WithOrgID(orgID)}
	if stage := strings.TrimSpace(q.Stage); stage != "" {
		if !domain.ValidStage(stage) {
			return nil, 0, domain.ErrInvalidStage
		}
		opts = append(opts, option.WithWhere("stage = ?", stage))
	}

	total, err := s.store.Count(ctx, &domain.Opportunity{}, opts...)
	if err != nil {
		return nil, 0, err
	}
	opportunities, err := s.store.Find(ctx, &domain.Opportunity{},
		append(opts,
			option.WithOrder("created_at DESC"),
			option.WithLimit(limit),
			option.WithOffset(q.Offset),
		)...,
	)
	if err != nil {
		return nil, 0, err
	}
	return opportunities, total, nil
}

func (s *Service) Get(ctx context.Context, orgID, opportunityID snowflake.ID) (*domain.Opportunity, error) {
	opportunity, err := s.store.FindOne(ctx, &domain.Opportunity{ID: opportunityID},
		option.WithOrgID(orgID),
		option.WithPreload("LineItems"),
	)
	if err != nil {
		return nil, err
	}
	if opportunity == nil {
		return nil, domain.ErrNotFound
	}
	if err := s.access.Can(ctx, orgID, meta(opportunity)); err != nil {
		return nil, err
	}
	return opportunity, nil
}

func (s *Service) Create(ctx context.Context, orgID snowflake.ID, req domain.CreateRequest) (*domain.Opportunity, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	stage := strings.TrimSpace(req.Stage)
	if stage == "" {
		stage = domain.StageQualification
	}
	if !domain.ValidStage(stage) {
		return nil, domain.ErrInvalidStage
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "USD"
	}

	var createdBy snowflake.ID
	if profile, ok := orgcontext.ProfileFromContext(ctx); ok {
		createdBy = profile.ID
	}

	now := time.Now().UTC()
	opportunity := &domain.Opportunity{
		ID:          s.genID.Generate(),
		OrgID:       orgID,
		CreatedBy:   createdBy,
		AssignedTo:  int64sOrEmpty(req.AssignedTo),
		Teams:       int64sOrEmpty(req.Teams),
		AccountID:   req.AccountID,
		ContactID:   req.ContactID,
		Name:        name,
		Stage:       stage,
		AmountCents: req.AmountCents,
		Currency:    currency,
		Probability: clampProbability(req.Probability),
		CloseDate:   req.CloseDate,
		Description: strings.TrimSpace(req.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, opportunity); err != nil {
		return nil, err
	}

	if len(req.LineItems) > 0 {
		items := make([]*domain.LineItem, 0, len(req.LineItems))
		for _, in := range req.LineItems {
			qty := in.Quantity
			if qty <= 0 {
				qty = 1
			}
			items = append(items, &domain.LineItem{
				ID:             s.genID.Generate(),
				OrgID:          orgID,
				OpportunityID:  opportunity.ID,
				Name:           strings.TrimSpace(in.Name),
				Quantity:       qty,
				UnitPriceCents: in.UnitPriceCents,
				CreatedAt:      now,
			})
		}
		if err := s.items.BatchCreate(ctx, items); err != nil {
			return nil, err
		}
	}

	s.telemetry.RecordCreated("opportunity")
	return s.Get(ctx, orgID, opportunity.ID)
}

func (s *Service) Update(ctx context.Context, orgID, opportunityID snowflake.ID, req domain.UpdateRequest) (*domain.Opportunity, error) {
	if _, err := s.Get(ctx, orgID, opportunityID); err != nil {
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
	if req.Stage != nil {
		stage := strings.TrimSpace(*req.Stage)
		if !domain.ValidStage(stage) {
			return nil, domain.ErrInvalidStage
		}
		fields["stage"] = stage
	}
	if req.AmountCents != nil {
		fields["amount_cents"] = *req.AmountCents
	}
	if req.Probability != nil {
		fields["probability"] = clampProbability(*req.Probability)
	}
	if req.CloseDate != nil {
		fields["close_date"] = *req.CloseDate
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

	if err := s.store.Update(ctx, opportunityID, fields); err != nil {
		return nil, err
	}
	return s.Get(ctx, orgID, opportunityID)
}

func (s *Service) Delete(ctx context.Context, orgID, opportunityID snowflake.ID) error {
	if _, err := s.Get(ctx, orgID, opportunityID); err != nil {
		return err
	}

	items, err := s.items.Find(ctx, &domain.LineItem{OpportunityID: opportunityID}, option.WithOrgID(orgID))
	if err != nil {
		return err
	}
	for _, item := range items {
		if err := s.items.Delete(ctx, item.ID); err != nil {
			return err
		}
	}
	return s.store.Delete(ctx, opportunityID)
}

func meta(o *domain.Opportunity) authorization.ObjectMeta {
	return authorization.ObjectMeta{
		OrgID:      o.OrgID,
		CreatedBy:  o.CreatedBy,
		AssignedTo: o.AssignedTo,
		Teams:      o.Teams,
	}
}

func clampProbability(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

func int64sOrEmpty(vals []int64) pq.Int64Array {
	if vals == nil {
		return pq.Int64Array{}
	}
	return pq.Int64Array(vals)
}
