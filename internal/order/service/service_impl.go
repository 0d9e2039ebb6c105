package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lib/pq"
	"github.com/opencrmhq/opencrm/internal/access"
	"github.com/opencrmhq/opencrm/internal/authorization"
	"github.com/opencrmhq/opencrm/internal/order/domain"
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
	Store     repository.Repository[domain.Order]
	Items     repository.Repository[domain.LineItem]
	Access    *access.Checker
	Telemetry *telemetry.Metrics `optional:"true"`
}

type Service struct {
	log       *zap.Logger
	genID     *snowflake.Node
	store     repository.Repository[domain.Order]
	items     repository.Repository[domain.LineItem]
	access    *access.Checker
	telemetry *telemetry.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		log:       p.Log.Named("order.service"),
		genID:     p.GenID,
		store:     p.Store,
		items:     p.Items,
		access:    p.Access,
		telemetry: p.Telemetry,
	}
}

func (s *Service) List(ctx context.Context, orgID snowflake.ID, q domain.ListQuery) ([]*domain.Order, int64, error) {
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

	total, err := s.store.Count(ctx, &domain.Order{}, opts...)
	if err != nil {
		return nil, 0, err
	}
	orders, err := s.store.Find(ctx, &domain.Order{},
		append(opts,
			option.WithOrder("created_at DESC"),
			option.WithLimit(limit),
			option.WithOffset(q.Offset),
		)...,
	)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (s *Service) Get(ctx context.Context, orgID, orderID snowflake.ID) (*domain.Order, error) {
	order, err := s.store.FindOne(ctx, &domain.Order{ID: orderID},
		option.WithOrgID(orgID),
		option.WithPreload("LineItems"),
	)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrNotFound
	}
	if err := s.access.Can(ctx, orgID, meta(order)); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Service) Create(ctx context.Context, orgID snowflake.ID, req domain.CreateRequest) (*domain.Order, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, domain.ErrInvalidTitle
	}
	if len(req.LineItems) == 0 {
		return nil, domain.ErrNoLineItems
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
	id := s.genID.Generate()
	order := &domain.Order{
		ID:          id,
		OrgID:       orgID,
		CreatedBy:   createdBy,
		AssignedTo:  int64sOrEmpty(req.AssignedTo),
		Teams:       int64sOrEmpty(req.Teams),
		AccountID:   req.AccountID,
		ContactID:   req.ContactID,
		Number:      fmt.Sprintf("ORD-%d-%s", now.Year(), id.Base32()),
		Title:       title,
		Status:      domain.StatusPending,
		Currency:    currency,
		Description: strings.TrimSpace(req.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, order); err != nil {
		return nil, err
	}

	total := int64(0)
	items := make([]*domain.LineItem, 0, len(req.LineItems))
	for _, in := range req.LineItems {
		qty := in.Quantity
		if qty <= 0 {
			qty = 1
		}
		amount := qty * in.UnitPriceCents
		total += amount
		items = append(items, &domain.LineItem{
			ID:             s.genID.Generate(),
			OrgID:          orgID,
			OrderID:        order.ID,
			Description:    strings.TrimSpace(in.Description),
			Quantity:       qty,
			UnitPriceCents: in.UnitPriceCents,
			AmountCents:    amount,
			CreatedAt:      now,
		})
	}
	if err := s.items.BatchCreate(ctx, items); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, order.ID, map[string]any{"total_cents": total}); err != nil {
		return nil, err
	}

	s.telemetry.RecordCreated("order")
	return s.Get(ctx, orgID, order.ID)
}

func (s *Service) Update(ctx context.Context, orgID, orderID snowflake.ID, req domain.UpdateRequest) (*domain.Order, error) {
	if _, err := s.Get(ctx, orgID, orderID); err != nil {
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

	if err := s.store.Update(ctx, orderID, fields); err != nil {
		return nil, err
	}
	return s.Get(ctx, orgID, orderID)
}

func (s *Service) Delete(ctx context.Context, orgID, orderID snowflake.ID) error {
	if _, err := s.Get(ctx, orgID, orderID); err != nil {
		return err
	}

	items, err := s.items.Find(ctx, &domain.LineItem{OrderID: orderID}, option.WithOrgID(orgID))
	if err != nil {
		return err
	}
	for _, item := range items {
		if err := s.items.Delete(ctx, item.ID); err != nil {
			return err
		}
	}
	return s.store.Delete(ctx, orderID)
}

func meta(o *domain.Order) authorization.ObjectMeta {
	return authorization.ObjectMeta{
		OrgID:      o.OrgID,
		CreatedBy:  o.CreatedBy,
		AssignedTo: o.AssignedTo,
		Teams:      o.Teams,
	}
}

func int64sOrEmpty(vals []int64) pq.Int64Array {
	if vals == nil {
		return pq.Int64Array{}
	}
	return pq.Int64Array(vals)
}
