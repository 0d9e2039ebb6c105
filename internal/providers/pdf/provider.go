// Package pdf renders customer-facing documents.
package pdf

import (
	"context"

	"go.uber.org/fx"
)

// InvoiceData is the render-ready view of an invoice. Amounts arrive
// preformatted; the renderer does no currency arithmetic.
type InvoiceData struct {
	OrgName       string
	InvoiceNumber string
	IssueDate     string
	DueDate       string

	BillToName    string
	BillToAddress string
	BillToEmail   string

	Items []InvoiceItem

	Subtotal string
	Tax      string
	Total    string
	Currency string
}

type InvoiceItem struct {
	Description string
	Qty         int64
	UnitPrice   string
	Amount      string
}

// Provider renders documents to PDF bytes.
type Provider interface {
	RenderInvoice(ctx context.Context, data InvoiceData) ([]byte, error)
}

var Module = fx.Module("providers.pdf",
	fx.Provide(New),
)
