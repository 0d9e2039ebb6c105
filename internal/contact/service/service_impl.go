package service

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lib/pq"
	"github.com/opencrmhq/opencrm/internal/access"
	"github.com/opencrmhq/opencrm/internal/authorization"
	"github.com/opencrmhq/opencrm/internal/contact/domain"
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
	Store     repository.Repository[domain.Contact]
	Access    *access.Checker
	Telemetry *telemetry.Metrics `optional:"true"`
}

type Service struct {
	log       *zap.Logger
	genID     *snowflake.Node
	store     repository.Repository[domain.Contact]
	access    *access.Checker
	telemetry *telemetry.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		log:       p.Log.Named("contact.service"),
		genID:     p.GenID,
		store:     p.Store,
		access:    p.Access,
		telemetry: p.Telemetry,
	}
}

func (s *Service) List(ctx context.Context, orgID snowflake.ID, q domain.ListQuery) ([]*domain.Contact, int64, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}

	total, err := s.store.Count(ctx, &domain.Contact{}, option.WithOrgID(orgID))
	if err != nil {
		return nil, 0, err
	}
	contacts, err := s.store.Find(ctx, &domain.Contact{},
		option.WithOrgID(orgID),
		option.WithOrder("created_at DESC"),
		option.WithLimit(limit),
		option.WithOffset(q.Offset),
	)
	if err != nil {
		return nil, 0, err
	}
	return contacts, total, nil
}

func (s *Service) Get(ctx context.Context, orgID, contactID snowflake.ID) (*domain.Contact, error) {
	contact, err := s.store.FindOne(ctx, &domain.Contact{ID: contactID}, option.WithOrgID(orgID))
	if err != nil {
		return nil, err
	}
	if contact == nil {
		return nil, domain.ErrNotFound
	}
	if err := s.access.Can(ctx, orgID, meta(contact)); err != nil {
		return nil, err
	}
	return contact, nil
}

func (s *Service) Create(ctx context.Context, orgID snowflake.ID, req domain.CreateRequest) (*domain.Contact, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidEmail
	}

	var createdBy snowflake.ID
	if profile, ok := orgcontext.ProfileFromContext(ctx); ok {
		createdBy = profile.ID
	}

	now := time.Now().UTC()
	contact := &domain.Contact{
		ID:          s.genID.Generate(),
		OrgID:       orgID,
		CreatedBy:   createdBy,
		AssignedTo:  int64sOrEmpty(req.AssignedTo),
		Teams:       int64sOrEmpty(req.Teams),
		FirstName:   strings.TrimSpace(req.FirstName),
		LastName:    strings.TrimSpace(req.LastName),
		Email:       email,
		Phone:       strings.TrimSpace(req.Phone),
		Title:       strings.TrimSpace(req.Title),
		Address:     strings.TrimSpace(req.Address),
		Description: strings.TrimSpace(req.Description),
		DoNotCall:   req.DoNotCall,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, contact); err != nil {
		return nil, err
	}
	s.telemetry.RecordCreated("contact")
	return contact, nil
}

func (s *Service) Update(ctx context.Context, orgID, contactID snowflake.ID, req domain.UpdateRequest) (*domain.Contact, error) {
	if _, err := s.Get(ctx, orgID, contactID); err != nil {
		return nil, err
	}

	fields := map[string]any{"updated_at": time.Now().UTC()}
	if req.Email != nil {
		email, err := normalizeEmail(*req.Email)
		if err != nil {
			return nil, domain.ErrInvalidEmail
		}
		fields["email"] = email
	}
	setString(fields, "first_name", req.FirstName)
	setString(fields, "last_name", req.LastName)
	setString(fields, "phone", req.Phone)
	setString(fields, "title", req.Title)
	setString(fields, "address", req.Address)
	setString(fields, "description", req.Description)
	if req.DoNotCall != nil {
		fields["do_not_call"] = *req.DoNotCall
	}
	if req.AssignedTo != nil {
		fields["assigned_to"] = pq.Int64Array(*req.AssignedTo)
	}
	if req.Teams != nil {
		fields["teams"] = pq.Int64Array(*req.Teams)
	}

	if err := s.store.Update(ctx, contactID, fields); err != nil {
		return nil, err
	}
	return s.Get(ctx, orgID, contactID)
}

func (s *Service) Delete(ctx context.Context, orgID, contactID snowflake.ID) error {
	if _, err := s.Get(ctx, orgID, contactID); err != nil {
		return err
	}
	return s.store.Delete(ctx, contactID)
}

func meta(c *domain.Contact) authorization.ObjectMeta {
	return authorization.ObjectMeta{
		OrgID:      c.OrgID,
		CreatedBy:  c.CreatedBy,
		AssignedTo: c.AssignedTo,
		Teams:      c.Teams,
	}
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	return strings.ToLower(addr.Address), nil
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
