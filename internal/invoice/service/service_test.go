package service

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/opencrmhq/opencrm/internal/access"
	"github.com/opencrmhq/opencrm/internal/config"
	"github.com/opencrmhq/opencrm/internal/invoice/domain"
	"github.com/opencrmhq/opencrm/internal/orgcontext"
	orgdomain "github.com/opencrmhq/opencrm/internal/organization/domain"
	"github.com/opencrmhq/opencrm/internal/providers/pdf"
	"github.com/opencrmhq/opencrm/pkg/db"
	"github.com/opencrmhq/opencrm/pkg/repository"
	"go.uber.org/zap"
)

type stubOrgService struct {
	orgdomain.Service
}

func (s *stubOrgService) GetByID(ctx context.Context, orgID snowflake.ID) (*orgdomain.Organization, error) {
	return &orgdomain.Organization{ID: orgID, Name: "Acme Corp"}, nil
}

type stubPDFProvider struct{}

func (stubPDFProvider) RenderInvoice(ctx context.Context, data pdf.InvoiceData) ([]byte, error) {
	return []byte("%PDF-1.4 stub"), nil
}

func newTestService(t *testing.T) domain.Service {
	t.Helper()

	conn, err := db.NewTest()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := conn.AutoMigrate(&domain.Invoice{}, &domain.LineItem{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}

	log := zap.NewNop()
	return New(Params{
		Log:       log,
		GenID:     node,
		Store:     repository.ProvideStore[domain.Invoice](conn),
		Items:     repository.ProvideStore[domain.LineItem](conn),
		Access:    access.NewChecker(access.Params{Log: log}),
		Orgs:      &stubOrgService{},
		PDF:       stubPDFProvider{},
		CRMConfig: config.NewStaticCRMConfigHolder(config.DefaultCRMConfig()),
	})
}

func orgCtx(orgID snowflake.ID) context.Context {
	ctx := orgcontext.WithOrgID(context.Background(), orgID)
	return orgcontext.WithProfile(ctx, &orgdomain.Profile{
		ID:       orgID + 1000,
		OrgID:    orgID,
		UserID:   orgID + 2000,
		Role:     orgdomain.RoleAdmin,
		IsActive: true,
	})
}

func createDraft(t *testing.T, svc domain.Service, ctx context.Context, orgID snowflake.ID) *domain.Invoice {
	t.Helper()
	invoice, err := svc.Create(ctx, orgID, domain.CreateRequest{
		Title: "Consulting March",
		TaxBP: 1000,
		LineItems: []domain.LineItemInput{
			{Description: "Consulting", Quantity: 10, UnitPriceCents: 15_000},
			{Description: "Travel", Quantity: 1, UnitPriceCents: 42_000},
		},
	})
	if err != nil {
		t.Fatalf("failed to create invoice: %v", err)
	}
	return invoice
}

func TestFinalizeComputesTotals(t *testing.T) {
	svc := newTestService(t)
	orgA := snowflake.ID(1)
	ctx := orgCtx(orgA)

	draft := createDraft(t, svc, ctx, orgA)

	invoice, err := svc.Finalize(ctx, orgA, draft.ID)
	if err != nil {
		t.Fatalf("failed to finalize: %v", err)
	}
	if invoice.Status != domain.StatusFinalized {
		t.Fatalf("expected status %q, got %q", domain.StatusFinalized, invoice.Status)
	}
	// 10 x 150.00 + 1 x 420.00 = 1920.00, plus 10% tax.
	if invoice.SubtotalCents != 192_000 {
		t.Fatalf("expected subtotal 192000, got %d", invoice.SubtotalCents)
	}
	if invoice.TaxCents != 19_200 {
		t.Fatalf("expected tax 19200, got %d", invoice.TaxCents)
	}
	if invoice.TotalCents != 211_200 {
		t.Fatalf("expected total 211200, got %d", invoice.TotalCents)
	}
	if invoice.IssueDate == nil || invoice.DueDate == nil || invoice.FinalizedAt == nil {
		t.Fatal("expected issue, due and finalized dates to be set")
	}
	wantDue := invoice.IssueDate.AddDate(0, 0, config.DefaultCRMConfig().InvoiceDueDays)
	if !invoice.DueDate.Equal(wantDue) {
		t.Fatalf("expected due date %v, got %v", wantDue, invoice.DueDate)
	}
}

func TestFinalizeTwiceConflicts(t *testing.T) {
	svc := newTestService(t)
	orgA := snowflake.ID(1)
	ctx := orgCtx(orgA)

	draft := createDraft(t, svc, ctx, orgA)
	if _, err := svc.Finalize(ctx, orgA, draft.ID); err != nil {
		t.Fatalf("failed to finalize: %v", err)
	}
	if _, err := svc.Finalize(ctx, orgA, draft.ID); !errors.Is(err, domain.ErrAlreadyFinalized) {
		t.Fatalf("expected ErrAlreadyFinalized, got %v", err)
	}
}

func TestFinalizeRejectsEmptyInvoice(t *testing.T) {
	svc := newTestService(t)
	orgA := snowflake.ID(1)
	ctx := orgCtx(orgA)

	invoice, err := svc.Create(ctx, orgA, domain.CreateRequest{Title: "Empty"})
	if err != nil {
		t.Fatalf("failed to create invoice: %v", err)
	}
	if _, err := svc.Finalize(ctx, orgA, invoice.ID); !errors.Is(err, domain.ErrNoLineItems) {
		t.Fatalf("expected ErrNoLineItems, got %v", err)
	}
}

func TestUpdateRejectsFinalizedInvoice(t *testing.T) {
	svc := newTestService(t)
	orgA := snowflake.ID(1)
	ctx := orgCtx(orgA)

	draft := createDraft(t, svc, ctx, orgA)
	if _, err := svc.Finalize(ctx, orgA, draft.ID); err != nil {
		t.Fatalf("failed to finalize: %v", err)
	}

	title := "Renamed"
	if _, err := svc.Update(ctx, orgA, draft.ID, domain.UpdateRequest{Title: &title}); !errors.Is(err, domain.ErrNotDraft) {
		t.Fatalf("expected ErrNotDraft, got %v", err)
	}
	if err := svc.Delete(ctx, orgA, draft.ID); !errors.Is(err, domain.ErrNotDraft) {
		t.Fatalf("expected ErrNotDraft on delete, got %v", err)
	}
}

func TestMarkPaidRequiresFinalized(t *testing.T) {
	svc := newTestService(t)
	orgA := snowflake.ID(1)
	ctx := orgCtx(orgA)

	draft := createDraft(t, svc, ctx, orgA)
	if _, err := svc.MarkPaid(ctx, orgA, draft.ID); !errors.Is(err, domain.ErrNotFinalized) {
		t.Fatalf("expected ErrNotFinalized, got %v", err)
	}

	if _, err := svc.Finalize(ctx, orgA, draft.ID); err != nil {
		t.Fatalf("failed to finalize: %v", err)
	}
	paid, err := svc.MarkPaid(ctx, orgA, draft.ID)
	if err != nil {
		t.Fatalf("failed to mark paid: %v", err)
	}
	if paid.Status != domain.StatusPaid || paid.PaidAt == nil {
		t.Fatalf("expected paid invoice, got status %q paid_at %v", paid.Status, paid.PaidAt)
	}
}

func TestRenderPDFRejectsDraft(t *testing.T) {
	svc := newTestService(t)
	orgA := snowflake.ID(1)
	ctx := orgCtx(orgA)

	draft := createDraft(t, svc, ctx, orgA)
	if _, err := svc.RenderPDF(ctx, orgA, draft.ID); !errors.Is(err, domain.ErrNotFinalized) {
		t.Fatalf("expected ErrNotFinalized for a draft, got %v", err)
	}

	if _, err := svc.Finalize(ctx, orgA, draft.ID); err != nil {
		t.Fatalf("failed to finalize: %v", err)
	}
	out, err := svc.RenderPDF(ctx, orgA, draft.ID)
	if err != nil {
		t.Fatalf("failed to render: %v", err)
	}
	if len(out) == 0 {
		t.Fatal("expected pdf bytes")
	}
}

func TestListHidesOtherOrgs(t *testing.T) {
	svc := newTestService(t)
	orgA := snowflake.ID(1)
	orgB := snowflake.ID(2)

	createDraft(t, svc, orgCtx(orgA), orgA)
	createDraft(t, svc, orgCtx(orgB), orgB)

	invoices, total, err := svc.List(orgCtx(orgA), orgA, domain.ListQuery{})
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if total != 1 || len(invoices) != 1 {
		t.Fatalf("expected one invoice for the org, got total=%d len=%d", total, len(invoices))
	}
	if invoices[0].OrgID != orgA {
		t.Fatalf("expected org %v, got %v", orgA, invoices[0].OrgID)
	}
}
