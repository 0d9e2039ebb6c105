// Package domain contains the invoice model and service contract.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lib/pq"
)

const (
	StatusDraft     = "draft"
	StatusFinalized = "finalized"
	StatusPaid      = "paid"
	StatusCancelled = "cancelled"
)

var (
	ErrNotFound         = errors.New("invoice_not_found")
	ErrInvalidTitle     = errors.New("invalid_invoice_title")
	ErrNotDraft         = errors.New("invoice_not_draft")
	ErrAlreadyFinalized = errors.New("invoice_already_finalized")
	ErrNotFinalized     = errors.New("invoice_not_finalized")
	ErrNoLineItems      = errors.New("invoice_has_no_line_items")
)

// Invoice is billed work. Drafts are mutable; finalizing freezes the
// totals and assigns the due date, after which only payment and
// cancellation transitions remain.
type Invoice struct {
	ID            snowflake.ID  `gorm:"primaryKey" json:"id"`
	OrgID         snowflake.ID  `gorm:"not null;index" json:"org_id"`
	CreatedBy     snowflake.ID  `gorm:"not null" json:"created_by"`
	AssignedTo    pq.Int64Array `gorm:"type:bigint[]" json:"assigned_to"`
	Teams         pq.Int64Array `gorm:"type:bigint[]" json:"teams"`
	AccountID     *snowflake.ID `gorm:"index" json:"account_id,omitempty"`
	Number        string        `gorm:"type:text;not null;index" json:"number"`
	Title         string        `gorm:"type:text;not null" json:"title"`
	Status        string        `gorm:"type:text;not null;default:'draft'" json:"status"`
	Currency      string        `gorm:"type:text;not null;default:'USD'" json:"currency"`
	BillToName    string        `gorm:"type:text" json:"bill_to_name"`
	BillToEmail   string        `gorm:"type:text" json:"bill_to_email"`
	BillToAddress string        `gorm:"type:text" json:"bill_to_address"`
	TaxBP         int64         `gorm:"not null;default:0" json:"tax_bp"`
	SubtotalCents int64         `gorm:"not null;default:0" json:"subtotal_cents"`
	TaxCents      int64         `gorm:"not null;default:0" json:"tax_cents"`
	TotalCents    int64         `gorm:"not null;default:0" json:"total_cents"`
	IssueDate     *time.Time    `json:"issue_date,omitempty"`
	DueDate       *time.Time    `json:"due_date,omitempty"`
	FinalizedAt   *time.Time    `json:"finalized_at,omitempty"`
	PaidAt        *time.Time    `json:"paid_at,omitempty"`
	LineItems     []LineItem    `gorm:"foreignKey:InvoiceID" json:"line_items,omitempty"`
	CreatedAt     time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoice" }

type LineItem struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID          snowflake.ID `gorm:"not null;index" json:"org_id"`
	InvoiceID      snowflake.ID `gorm:"not null;index" json:"invoice_id"`
	Description    string       `gorm:"type:text;not null" json:"description"`
	Quantity       int64        `gorm:"not null;default:1" json:"quantity"`
	UnitPriceCents int64        `gorm:"not null;default:0" json:"unit_price_cents"`
	AmountCents    int64        `gorm:"not null;default:0" json:"amount_cents"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (LineItem) TableName() string { return "invoice_line_item" }

type LineItemInput struct {
	Description    string `json:"description"`
	Quantity       int64  `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

type CreateRequest struct {
	Title         string          `json:"title"`
	AccountID     *snowflake.ID   `json:"account_id,omitempty"`
	Currency      string          `json:"currency"`
	BillToName    string          `json:"bill_to_name"`
	BillToEmail   string          `json:"bill_to_email"`
	BillToAddress string          `json:"bill_to_address"`
	TaxBP         int64           `json:"tax_bp"`
	LineItems     []LineItemInput `json:"line_items"`
	AssignedTo    []int64         `json:"assigned_to"`
	Teams         []int64         `json:"teams"`
}

type UpdateRequest struct {
	Title         *string          `json:"title,omitempty"`
	BillToName    *string          `json:"bill_to_name,omitempty"`
	BillToEmail   *string          `json:"bill_to_email,omitempty"`
	BillToAddress *string          `json:"bill_to_address,omitempty"`
	TaxBP         *int64           `json:"tax_bp,omitempty"`
	LineItems     *[]LineItemInput `json:"line_items,omitempty"`
	AssignedTo    *[]int64         `json:"assigned_to,omitempty"`
	Teams         *[]int64         `json:"teams,omitempty"`
}

type ListQuery struct {
	Status string
	Limit  int
	Offset int
}

type Service interface {
	List(ctx context.Context, orgID snowflake.ID, q ListQuery) ([]*Invoice, int64, error)
	Get(ctx context.Context, orgID, invoiceID snowflake.ID) (*Invoice, error)
	Create(ctx context.Context, orgID snowflake.ID, req CreateRequest) (*Invoice, error)
	// Update mutates a draft. Finalized invoices reject edits.
	Update(ctx context.Context, orgID, invoiceID snowflake.ID, req UpdateRequest) (*Invoice, error)
	Delete(ctx context.Context, orgID, invoiceID snowflake.ID) error
	// Finalize freezes totals, stamps the issue date and computes the
	// due date. Idempotent callers get ErrAlreadyFinalized.
	Finalize(ctx context.Context, orgID, invoiceID snowflake.ID) (*Invoice, error)
	MarkPaid(ctx context.Context, orgID, invoiceID snowflake.ID) (*Invoice, error)
	Cancel(ctx context.Context, orgID, invoiceID snowflake.ID) (*Invoice, error)
	// RenderPDF renders the invoice document. Drafts cannot render.
	RenderPDF(ctx context.Context, orgID, invoiceID snowflake.ID) ([]byte, error)
}
