package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lib/pq"
	"github.com/opencrmhq/opencrm/internal/access"
	accountdomain "github.com/opencrmhq/opencrm/internal/account/domain"
	"github.com/opencrmhq/opencrm/internal/authorization"
	contactdomain "github.com/opencrmhq/opencrm/internal/contact/domain"
	"github.com/opencrmhq/opencrm/internal/lead/domain"
	opportunitydomain "github.com/opencrmhq/opencrm/internal/opportunity/domain"
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

	Log           *zap.Logger
	GenID         *snowflake.Node
	Store         repository.Repository[domain.Lead]
	Access        *access.Checker
	Accounts      accountdomain.Service
	Contacts      contactdomain.Service
	Opportunities opportunitydomain.Service
	Telemetry     *telemetry.Metrics `optional:"true"`
}

type Service struct {
	log           *zap.Logger
	genID         *snowflake.Node
	store         repository.Repository[domain.Lead]
	access        *access.Checker
	accounts      accountdomain.Service
	contacts      contactdomain.Service
	opportunities opportunitydomain.Service
	telemetry     *telemetry.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		log:           p.Log.Named("lead.service"),
		genID:         p.GenID,
		store:         p.Store,
		access:        p.Access,
		accounts:      p.Accounts,
		contacts:      p.Contacts,
		opportunities: p.Opportunities,
		telemetry:     p.Telemetry,
	}
}

func (s *Service) List(ctx context.Context, orgID snowflake.ID, q domain.ListQuery) ([]*domain.Lead, int64, error) {
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

	total, err := s.store.Count(ctx, &domain.Lead{}, opts...)
	if err != nil {
		return nil, 0, err
	}
	leads, err := s.store.Find(ctx, &domain.Lead{},
		append(opts,
			option.WithOrder("created_at DESC"),
			option.WithLimit(limit),
			option.WithOffset(q.Offset),
		)...,
	)
	if err != nil {
		return nil, 0, err
	}
	return leads, total, nil
}

func (s *Service) Get(ctx context.Context, orgID, leadID snowflake.ID) (*domain.Lead, error) {
	lead, err := s.store.FindOne(ctx, &domain.Lead{ID: leadID}, option.WithOrgID(orgID))
	if err != nil {
		return nil, err
	}
	if lead == nil {
		return nil, domain.ErrNotFound
	}
	if err := s.access.Can(ctx, orgID, meta(lead)); err != nil {
		return nil, err
	}
	return lead, nil
}

func (s *Service) Create(ctx context.Context, orgID snowflake.ID, req domain.CreateRequest) (*domain.Lead, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, domain.ErrInvalidName
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
	lead := &domain.Lead{
		ID:          s.genID.Generate(),
		OrgID:       orgID,
		CreatedBy:   createdBy,
		AssignedTo:  int64sOrEmpty(req.AssignedTo),
		Teams:       int64sOrEmpty(req.Teams),
		Title:       title,
		FirstName:   strings.TrimSpace(req.FirstName),
		LastName:    strings.TrimSpace(req.LastName),
		Email:       strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:       strings.TrimSpace(req.Phone),
		CompanyName: strings.TrimSpace(req.CompanyName),
		Website:     strings.TrimSpace(req.Website),
		Source:      strings.TrimSpace(req.Source),
		Status:      status,
		OpportunityAmountCents: req.OpportunityAmountCents,
		Description: strings.TrimSpace(req.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, lead); err != nil {
		return nil, err
	}
	s.telemetry.RecordCreated("lead")
	return lead, nil
}

func (s *Service) Update(ctx context.Context, orgID, leadID snowflake.ID, req domain.UpdateRequest) (*domain.Lead, error) {
	lead, err := s.Get(ctx, orgID, leadID)
	if err != nil {
		return nil, err
	}
	if lead.Status == domain.StatusConverted {
		return nil, domain.ErrAlreadyConverted
	}

	fields := map[string]any{"updated_at": time.Now().UTC()}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, domain.ErrInvalidName
		}
		fields["title"] = title
	}
	if req.Status != nil {
		status := strings.TrimSpace(*req.Status)
		if !domain.ValidStatus(status) || status == domain.StatusConverted {
			// Converted is only reachable through Convert.
			return nil, domain.ErrInvalidStatus
		}
		fields["status"] = status
	}
	if req.Email != nil {
		fields["email"] = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	setString(fields, "first_name", req.FirstName)
	setString(fields, "last_name", req.LastName)
	setString(fields, "phone", req.Phone)
	setString(fields, "company_name", req.CompanyName)
	setString(fields, "website", req.Website)
	setString(fields, "source", req.Source)
	setString(fields, "description", req.Description)
	if req.OpportunityAmountCents != nil {
		fields["opportunity_amount_cents"] = *req.OpportunityAmountCents
	}
	if req.AssignedTo != nil {
		fields["assigned_to"] = pq.Int64Array(*req.AssignedTo)
	}
	if req.Teams != nil {
		fields["teams"] = pq.Int64Array(*req.Teams)
	}

	if err := s.store.Update(ctx, leadID, fields); err != nil {
		return nil, err
	}
	return s.Get(ctx, orgID, leadID)
}

func (s *Service) Delete(ctx context.Context, orgID, leadID snowflake.ID) error {
	if _, err := s.Get(ctx, orgID, leadID); err != nil {
		return err
	}
	return s.store.Delete(ctx, leadID)
}

func (s *Service) Convert(ctx context.Context, orgID, leadID snowflake.ID) (*domain.ConvertResult, error) {
	lead, err := s.Get(ctx, orgID, leadID)
	if err != nil {
		return nil, err
	}
	if lead.Status == domain.StatusConverted {
		return nil, domain.ErrAlreadyConverted
	}

	accountName := lead.CompanyName
	if accountName == "" {
		accountName = lead.Title
	}
	account, err := s.accounts.Create(ctx, orgID, accountdomain.CreateRequest{
		Name:       accountName,
		Email:      lead.Email,
		Phone:      lead.Phone,
		Website:    lead.Website,
		AssignedTo: lead.AssignedTo,
		Teams:      lead.Teams,
	})
	if err != nil {
		return nil, err
	}

	firstName := lead.FirstName
	if firstName == "" {
		firstName = lead.Title
	}
	// Contacts require an address; leads captured without one get a
	// placeholder the UI flags for follow-up.
	contactEmail := lead.Email
	if contactEmail == "" {
		contactEmail = "unknown@example.invalid"
	}
	contact, err := s.contacts.Create(ctx, orgID, contactdomain.CreateRequest{
		FirstName:  firstName,
		LastName:   lead.LastName,
		Email:      contactEmail,
		Phone:      lead.Phone,
		AssignedTo: lead.AssignedTo,
		Teams:      lead.Teams,
	})
	if err != nil {
		return nil, err
	}

	opportunity, err := s.opportunities.Create(ctx, orgID, opportunitydomain.CreateRequest{
		Name:        lead.Title,
		AccountID:   &account.ID,
		ContactID:   &contact.ID,
		AmountCents: lead.OpportunityAmountCents,
		AssignedTo:  lead.AssignedTo,
		Teams:       lead.Teams,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	fields := map[string]any{
		"status":         domain.StatusConverted,
		"converted_at":   now,
		"account_id":     account.ID,
		"contact_id":     contact.ID,
		"opportunity_id": opportunity.ID,
		"updated_at":     now,
	}
	if err := s.store.Update(ctx, leadID, fields); err != nil {
		return nil, err
	}

	converted, err := s.Get(ctx, orgID, leadID)
	if err != nil {
		return nil, err
	}

	s.log.Info("lead converted",
		zap.String("lead_id", leadID.String()),
		zap.String("account_id", account.ID.String()),
		zap.String("opportunity_id", opportunity.ID.String()),
	)

	return &domain.ConvertResult{
		Lead:          converted,
		AccountID:     account.ID,
		ContactID:     contact.ID,
		OpportunityID: opportunity.ID,
	}, nil
}

func meta(l *domain.Lead) authorization.ObjectMeta {
	return authorization.ObjectMeta{
		OrgID:      l.OrgID,
		CreatedBy:  l.CreatedBy,
		AssignedTo: l.AssignedTo,
		Teams:      l.Teams,
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
