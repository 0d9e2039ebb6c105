package service

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/opencrmhq/opencrm/internal/access"
	accountdomain "github.com/opencrmhq/opencrm/internal/account/domain"
	accountservice "github.com/opencrmhq/opencrm/internal/account/service"
	contactdomain "github.com/opencrmhq/opencrm/internal/contact/domain"
	contactservice "github.com/opencrmhq/opencrm/internal/contact/service"
	"github.com/opencrmhq/opencrm/internal/lead/domain"
	opportunitydomain "github.com/opencrmhq/opencrm/internal/opportunity/domain"
	opportunityservice "github.com/opencrmhq/opencrm/internal/opportunity/service"
	"github.com/opencrmhq/opencrm/internal/orgcontext"
	orgdomain "github.com/opencrmhq/opencrm/internal/organization/domain"
	"github.com/opencrmhq/opencrm/pkg/db"
	"github.com/opencrmhq/opencrm/pkg/repository"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) domain.Service {
	t.Helper()

	conn, err := db.NewTest()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := conn.AutoMigrate(
		&domain.Lead{},
		&accountdomain.Account{},
		&contactdomain.Contact{},
		&opportunitydomain.Opportunity{},
		&opportunitydomain.LineItem{},
	); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}

	log := zap.NewNop()
	checker := access.NewChecker(access.Params{Log: log})

	accounts := accountservice.New(accountservice.Params{
		Log:    log,
		GenID:  node,
		Store:  repository.ProvideStore[accountdomain.Account](conn),
		Access: checker,
	})
	contacts := contactservice.New(contactservice.Params{
		Log:    log,
		GenID:  node,
		Store:  repository.ProvideStore[contactdomain.Contact](conn),
		Access: checker,
	})
	opportunities := opportunityservice.New(opportunityservice.Params{
		Log:    log,
		GenID:  node,
		Store:  repository.ProvideStore[opportunitydomain.Opportunity](conn),
		Items:  repository.ProvideStore[opportunitydomain.LineItem](conn),
		Access: checker,
	})

	return New(Params{
		Log:           log,
		GenID:         node,
		Store:         repository.ProvideStore[domain.Lead](conn),
		Access:        checker,
		Accounts:      accounts,
		Contacts:      contacts,
		Opportunities: opportunities,
	})
}

// orgCtx carries an active admin profile for orgID, the shape the org
// middleware leaves on the request context.
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

func TestListScopedToOrg(t *testing.T) {
	svc := newTestService(t)
	orgA := snowflake.ID(1)
	orgB := snowflake.ID(2)

	leadA, err := svc.Create(orgCtx(orgA), orgA, domain.CreateRequest{Title: "Acme rollout"})
	if err != nil {
		t.Fatalf("failed to create lead: %v", err)
	}
	if _, err := svc.Create(orgCtx(orgB), orgB, domain.CreateRequest{Title: "Globex rollout"}); err != nil {
		t.Fatalf("failed to create lead: %v", err)
	}

	leads, total, err := svc.List(orgCtx(orgA), orgA, domain.ListQuery{})
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if total != 1 || len(leads) != 1 {
		t.Fatalf("expected exactly one lead for the org, got total=%d len=%d", total, len(leads))
	}
	if leads[0].ID != leadA.ID {
		t.Fatalf("expected lead %v, got %v", leadA.ID, leads[0].ID)
	}
}

func TestGetHidesOtherOrgsRecords(t *testing.T) {
	svc := newTestService(t)
	orgA := snowflake.ID(1)
	orgB := snowflake.ID(2)

	leadB, err := svc.Create(orgCtx(orgB), orgB, domain.CreateRequest{Title: "Globex rollout"})
	if err != nil {
		t.Fatalf("failed to create lead: %v", err)
	}

	// A record in another org looks identical to one that does not
	// exist; the caller never learns it is there.
	if _, err := svc.Get(orgCtx(orgA), orgA, leadB.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for cross-org read, got %v", err)
	}
}

func TestCreateRequiresTitle(t *testing.T) {
	svc := newTestService(t)
	orgA := snowflake.ID(1)

	if _, err := svc.Create(orgCtx(orgA), orgA, domain.CreateRequest{Title: "   "}); !errors.Is(err, domain.ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
}

func TestConvertCreatesSalesRecords(t *testing.T) {
	svc := newTestService(t)
	orgA := snowflake.ID(1)
	ctx := orgCtx(orgA)

	lead, err := svc.Create(ctx, orgA, domain.CreateRequest{
		Title:       "Acme rollout",
		FirstName:   "Jane",
		LastName:    "Smith",
		Email:       "jane@acme.example",
		CompanyName: "Acme Corp",
		OpportunityAmountCents: 250_000,
	})
	if err != nil {
		t.Fatalf("failed to create lead: %v", err)
	}

	result, err := svc.Convert(ctx, orgA, lead.ID)
	if err != nil {
		t.Fatalf("failed to convert: %v", err)
	}
	if result.AccountID == 0 || result.ContactID == 0 || result.OpportunityID == 0 {
		t.Fatalf("expected account, contact and opportunity ids, got %+v", result)
	}
	if result.Lead.Status != domain.StatusConverted {
		t.Fatalf("expected status %q, got %q", domain.StatusConverted, result.Lead.Status)
	}
	if result.Lead.ConvertedAt == nil {
		t.Fatal("expected converted_at to be set")
	}

	if _, err := svc.Convert(ctx, orgA, lead.ID); !errors.Is(err, domain.ErrAlreadyConverted) {
		t.Fatalf("expected ErrAlreadyConverted on second convert, got %v", err)
	}
}

func TestUpdateRejectsConvertedStatus(t *testing.T) {
	svc := newTestService(t)
	orgA := snowflake.ID(1)
	ctx := orgCtx(orgA)

	lead, err := svc.Create(ctx, orgA, domain.CreateRequest{Title: "Acme rollout"})
	if err != nil {
		t.Fatalf("failed to create lead: %v", err)
	}

	converted := domain.StatusConverted
	if _, err := svc.Update(ctx, orgA, lead.ID, domain.UpdateRequest{Status: &converted}); !errors.Is(err, domain.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}

	if _, err := svc.Convert(ctx, orgA, lead.ID); err != nil {
		t.Fatalf("failed to convert: %v", err)
	}

	closed := domain.StatusClosed
	if _, err := svc.Update(ctx, orgA, lead.ID, domain.UpdateRequest{Status: &closed}); !errors.Is(err, domain.ErrAlreadyConverted) {
		t.Fatalf("expected ErrAlreadyConverted after convert, got %v", err)
	}
}
