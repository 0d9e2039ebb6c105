// Package domain contains the order model and service contract.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lib/pq"
)

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusFulfilled = "fulfilled"
	StatusCancelled = "cancelled"
)

var (
	ErrNotFound      = errors.New("order_not_found")
	ErrInvalidTitle  = errors.New("invalid_order_title")
	ErrInvalidStatus = errors.New("invalid_order_status")
	ErrNoLineItems   = errors.New("order_has_no_line_items")
)

var validStatuses = map[string]struct{}{
	StatusPending: {}, StatusConfirmed: {}, StatusFulfilled: {}, StatusCancelled: {},
}

func ValidStatus(status string) bool {
	_, ok := validStatuses[status]
	return ok
}

type Order struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID  `gorm:"not null;index" json:"org_id"`
	CreatedBy   snowflake.ID  `gorm:"not null" json:"created_by"`
	AssignedTo  pq.Int64Array `gorm:"type:bigint[]" json:"assigned_to"`
	Teams       pq.Int64Array `gorm:"type:bigint[]" json:"teams"`
	AccountID   *snowflake.ID `gorm:"index" json:"account_id,omitempty"`
	ContactID   *snowflake.ID `gorm:"index" json:"contact_id,omitempty"`
	Number      string        `gorm:"type:text;not null;index" json:"number"`
	Title       string        `gorm:"type:text;not null" json:"title"`
	Status      string        `gorm:"type:text;not null;default:'pending'" json:"status"`
	Currency    string        `gorm:"type:text;not null;default:'USD'" json:"currency"`
	TotalCents  int64         `gorm:"not null;default:0" json:"total_cents"`
	Description string        `gorm:"type:text" json:"description"`
	LineItems   []LineItem    `gorm:"foreignKey:OrderID" json:"line_items,omitempty"`
	CreatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Order) TableName() string { return "orders" }

type LineItem struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID          snowflake.ID `gorm:"not null;index" json:"org_id"`
	OrderID        snowflake.ID `gorm:"not null;index" json:"order_id"`
	Description    string       `gorm:"type:text;not null" json:"description"`
	Quantity       int64        `gorm:"not null;default:1" json:"quantity"`
	UnitPriceCents int64        `gorm:"not null;default:0" json:"unit_price_cents"`
	AmountCents    int64        `gorm:"not null;default:0" json:"amount_cents"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (LineItem) TableName() string { return "order_line_item" }

type LineItemInput struct {
	Description    string `json:"description"`
	Quantity       int64  `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

type CreateRequest struct {
	Title       string          `json:"title"`
	AccountID   *snowflake.ID   `json:"account_id,omitempty"`
	ContactID   *snowflake.ID   `json:"contact_id,omitempty"`
	Currency    string          `json:"currency"`
	Description string          `json:"description"`
	LineItems   []LineItemInput `json:"line_items"`
	AssignedTo  []int64         `json:"assigned_to"`
	Teams       []int64         `json:"teams"`
}

type UpdateRequest struct {
	Title       *string  `json:"title,omitempty"`
	Status      *string  `json:"status,omitempty"`
	Description *string  `json:"description,omitempty"`
	AssignedTo  *[]int64 `json:"assigned_to,omitempty"`
	Teams       *[]int64 `json:"teams,omitempty"`
}

type ListQuery struct {
	Status string
	Limit  int
	Offset int
}

type Service interface {
	List(ctx context.Context, orgID snowflake.ID, q ListQuery) ([]*Order, int64, error)
	Get(ctx context.Context, orgID, orderID snowflake.ID) (*Order, error)
	Create(ctx context.Context, orgID snowflake.ID, req CreateRequest) (*Order, error)
	Update(ctx context.Context, orgID, orderID snowflake.ID, req UpdateRequest) (*Order, error)
	Delete(ctx context.Context, orgID, orderID snowflake.ID) error
}
