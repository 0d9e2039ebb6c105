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
	"github.com/opencrmhq/opencrm/internal/config"
	"github.com/opencrmhq/opencrm/internal/invoice/domain"
	orgdomain "github.com/opencrmhq/opencrm/internal/organization/domain"
	"github.com/opencrmhq/opencrm/internal/orgcontext"
	"github.com/opencrmhq/opencrm/internal/providers/pdf"
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
	Store     repository.Repository[domain.Invoice]
	Items     repository.Repository[domain.LineItem]
	Access    *access.Checker
	Orgs      orgdomain.Service
	PDF       pdf.Provider
	CRMConfig *config.CRMConfigHolder
	Telemetry *telemetry.Metrics `optional:"true"`
}

type Service struct {
	log       *zap.Logger
	genID     *snowflake.Node
	store     repository.Repository[domain.Invoice]
	items     repository.Repository[domain.LineItem]
	access    *access.Checker
	orgs      orgdomain.Service
	pdf       pdf.Provider
	crmConfig *config.CRMConfigHolder
	telemetry *telemetry.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		log:       p.Log.Named("invoice.service"),
		genID:     p.GenID,
		store:     p.Store,
		items:     p.Items,
		access:    p.Access,
		orgs:      p.Orgs,
		pdf:       p.PDF,
		crmConfig: p.CRMConfig,
		telemetry: p.Telemetry,
	}
}

func (s *Service) List(ctx context.Context, orgID snowflake.ID, q domain.ListQuery) ([]*domain.Invoice, int64, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}

	opts := []option.QueryOption{option.WithOrgID(orgID)}
	if status := strings.TrimSpace(q.Status); status != "" {
		opts = append(opts, option.WithWhere("status = ?", status))
	}

	total, err := s.store.Count(ctx, &domain.Invoice{}, opts...)
	if err != nil {
		return nil, 0, err
	}
	invoices, err := s.store.Find(ctx, &domain.Invoice{},
		append(opts,
			option.WithOrder("created_at DESC"),
			option.WithLimit(limit),
			option.WithOffset(q.Offset),
		)...,
	)
	if err != nil {
		return nil, 0, err
	}
	return invoices, total, nil
}

func (s *Service) Get(ctx context.Context, orgID, invoiceID snowflake.ID) (*domain.Invoice, error) {
	invoice, err := s.store.FindOne(ctx, &domain.Invoice{ID: invoiceID},
		option.WithOrgID(orgID),
		option.WithPreload("LineItems"),
	)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, domain.ErrNotFound
	}
	if err := s.access.Can(ctx, orgID, meta(invoice)); err != nil {
		return nil, err
	}
	return invoice, nil
}

func (s *Service) Create(ctx context.Context, orgID snowflake.ID, req domain.CreateRequest) (*domain.Invoice, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, domain.ErrInvalidTitle
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
	invoice := &domain.Invoice{
		ID:            id,
		OrgID:         orgID,
		CreatedBy:     createdBy,
		AssignedTo:    int64sOrEmpty(req.AssignedTo),
		Teams:         int64sOrEmpty(req.Teams),
		AccountID:     req.AccountID,
		Number:        fmt.Sprintf("INV-%d-%s", now.Year(), id.Base32()),
		Title:         title,
		Status:        domain.StatusDraft,
		Currency:      currency,
		BillToName:    strings.TrimSpace(req.BillToName),
		BillToEmail:   strings.TrimSpace(req.BillToEmail),
		BillToAddress: strings.TrimSpace(req.BillToAddress),
		TaxBP:         req.TaxBP,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.Create(ctx, invoice); err != nil {
		return nil, err
	}
	if err := s.replaceLineItems(ctx, invoice, req.LineItems); err != nil {
		return nil, err
	}

	s.telemetry.RecordCreated("invoice")
	return s.Get(ctx, orgID, invoice.ID)
}

func (s *Service) Update(ctx context.Context, orgID, invoiceID snowflake.ID, req domain.UpdateRequest) (*domain.Invoice, error) {
	invoice, err := s.Get(ctx, orgID, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice.Status != domain.StatusDraft {
		return nil, domain.ErrNotDraft
	}

	fields := map[string]any{"updated_at": time.Now().UTC()}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, domain.ErrInvalidTitle
		}
		fields["title"] = title
	}
	setString(fields, "bill_to_name", req.BillToName)
	setString(fields, "bill_to_email", req.BillToEmail)
	setString(fields, "bill_to_address", req.BillToAddress)
	if req.TaxBP != nil {
		fields["tax_bp"] = *req.TaxBP
	}
	if req.AssignedTo != nil {
		fields["assigned_to"] = pq.Int64Array(*req.AssignedTo)
	}
	if req.Teams != nil {
		fields["teams"] = pq.Int64Array(*req.Teams)
	}

	if err := s.store.Update(ctx, invoiceID, fields); err != nil {
		return nil, err
	}
	if req.LineItems != nil {
		if err := s.replaceLineItems(ctx, invoice, *req.LineItems); err != nil {
			return nil, err
		}
	}
	return s.Get(ctx, orgID, invoiceID)
}

func (s *Service) Delete(ctx context.Context, orgID, invoiceID snowflake.ID) error {
	invoice, err := s.Get(ctx, orgID, invoiceID)
	if err != nil {
		return err
	}
	if invoice.Status != domain.StatusDraft {
		return domain.ErrNotDraft
	}

	if err := s.deleteLineItems(ctx, orgID, invoiceID); err != nil {
		return err
	}
	return s.store.Delete(ctx, invoiceID)
}

func (s *Service) Finalize(ctx context.Context, orgID, invoiceID snowflake.ID) (*domain.Invoice, error) {
	invoice, err := s.Get(ctx, orgID, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice.Status == domain.StatusFinalized || invoice.Status == domain.StatusPaid {
		return nil, domain.ErrAlreadyFinalized
	}
	if invoice.Status != domain.StatusDraft {
		return nil, domain.ErrNotDraft
	}
	if len(invoice.LineItems) == 0 {
		return nil, domain.ErrNoLineItems
	}

	subtotal := int64(0)
	for _, item := range invoice.LineItems {
		subtotal += item.AmountCents
	}
	tax := subtotal * invoice.TaxBP / 10000
	dueDays := s.crmConfig.Get().InvoiceDueDays

	now := time.Now().UTC()
	due := now.AddDate(0, 0, dueDays)
	fields := map[string]any{
		"status":         domain.StatusFinalized,
		"subtotal_cents": subtotal,
		"tax_cents":      tax,
		"total_cents":    subtotal + tax,
		"issue_date":     now,
		"due_date":       due,
		"finalized_at":   now,
		"updated_at":     now,
	}
	if err := s.store.Update(ctx, invoiceID, fields); err != nil {
		return nil, err
	}

	s.log.Info("invoice finalized",
		zap.String("invoice_id", invoiceID.String()),
		zap.Int64("total_cents", subtotal+tax),
	)
	return s.Get(ctx, orgID, invoiceID)
}

func (s *Service) MarkPaid(ctx context.Context, orgID, invoiceID snowflake.ID) (*domain.Invoice, error) {
	invoice, err := s.Get(ctx, orgID, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice.Status != domain.StatusFinalized {
		return nil, domain.ErrNotFinalized
	}

	now := time.Now().UTC()
	fields := map[string]any{
		"status":     domain.StatusPaid,
		"paid_at":    now,
		"updated_at": now,
	}
	if err := s.store.Update(ctx, invoiceID, fields); err != nil {
		return nil, err
	}
	return s.Get(ctx, orgID, invoiceID)
}

func (s *Service) Cancel(ctx context.Context, orgID, invoiceID snowflake.ID) (*domain.Invoice, error) {
	if _, err := s.Get(ctx, orgID, invoiceID); err != nil {
		return nil, err
	}

	fields := map[string]any{
		"status":     domain.StatusCancelled,
		"updated_at": time.Now().UTC(),
	}
	if err := s.store.Update(ctx, invoiceID, fields); err != nil {
		return nil, err
	}
	return s.Get(ctx, orgID, invoiceID)
}

func (s *Service) RenderPDF(ctx context.Context, orgID, invoiceID snowflake.ID) ([]byte, error) {
	invoice, err := s.Get(ctx, orgID, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice.Status == domain.StatusDraft {
		return nil, domain.ErrNotFinalized
	}

	orgName := ""
	if org, err := s.orgs.GetByID(ctx, orgID); err == nil {
		orgName = org.Name
	}

	data := pdf.InvoiceData{
		OrgName:       orgName,
		InvoiceNumber: invoice.Number,
		IssueDate:     formatDate(invoice.IssueDate),
		DueDate:       formatDate(invoice.DueDate),
		BillToName:    invoice.BillToName,
		BillToAddress: invoice.BillToAddress,
		BillToEmail:   invoice.BillToEmail,
		Subtotal:      formatCents(invoice.SubtotalCents),
		Tax:           formatCents(invoice.TaxCents),
		Total:         formatCents(invoice.TotalCents),
		Currency:      invoice.Currency,
	}
	for _, item := range invoice.LineItems {
		data.Items = append(data.Items, pdf.InvoiceItem{
			Description: item.Description,
			Qty:         item.Quantity,
			UnitPrice:   formatCents(item.UnitPriceCents),
			Amount:      formatCents(item.AmountCents),
		})
	}

	out, err := s.pdf.RenderInvoice(ctx, data)
	if err != nil {
		s.telemetry.RecordPDFRender("error")
		return nil, err
	}
	s.telemetry.RecordPDFRender("ok")
	return out, nil
}

// replaceLineItems swaps the invoice's items for the given inputs and
// keeps the stored subtotal in sync while the invoice is a draft.
func (s *Service) replaceLineItems(ctx context.Context, invoice *domain.Invoice, inputs []domain.LineItemInput) error {
	if err := s.deleteLineItems(ctx, invoice.OrgID, invoice.ID); err != nil {
		return err
	}

	now := time.Now().UTC()
	subtotal := int64(0)
	items := make([]*domain.LineItem, 0, len(inputs))
	for _, in := range inputs {
		qty := in.Quantity
		if qty <= 0 {
			qty = 1
		}
		amount := qty * in.UnitPriceCents
		subtotal += amount
		items = append(items, &domain.LineItem{
			ID:             s.genID.Generate(),
			OrgID:          invoice.OrgID,
			InvoiceID:      invoice.ID,
			Description:    strings.TrimSpace(in.Description),
			Quantity:       qty,
			UnitPriceCents: in.UnitPriceCents,
			AmountCents:    amount,
			CreatedAt:      now,
		})
	}
	if err := s.items.BatchCreate(ctx, items); err != nil {
		return err
	}

	tax := subtotal * invoice.TaxBP / 10000
	return s.store.Update(ctx, invoice.ID, map[string]any{
		"subtotal_cents": subtotal,
		"tax_cents":      tax,
		"total_cents":    subtotal + tax,
		"updated_at":     now,
	})
}

func (s *Service) deleteLineItems(ctx context.Context, orgID, invoiceID snowflake.ID) error {
	items, err := s.items.Find(ctx, &domain.LineItem{InvoiceID: invoiceID}, option.WithOrgID(orgID))
	if err != nil {
		return err
	}
	for _, item := range items {
		if err := s.items.Delete(ctx, item.ID); err != nil {
			return err
		}
	}
	return nil
}

func meta(i *domain.Invoice) authorization.ObjectMeta {
	return authorization.ObjectMeta{
		OrgID:      i.OrgID,
		CreatedBy:  i.CreatedBy,
		AssignedTo: i.AssignedTo,
		Teams:      i.Teams,
	}
}

func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
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
