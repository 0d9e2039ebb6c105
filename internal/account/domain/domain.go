// Package domain contains the account model and service contract.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lib/pq"
)

const (
	StatusOpen   = "open"
	StatusClosed = "closed"
)

var (
	ErrNotFound      = errors.New("account_not_found")
	ErrInvalidName   = errors.New("invalid_account_name")
	ErrInvalidStatus = errors.New("invalid_account_status")
)

// Account is a company record other CRM objects hang off.
type Account struct {
	ID             snowflake.ID  `gorm:"primaryKey" json:"id"`
	OrgID          snowflake.ID  `gorm:"not null;index" json:"org_id"`
	CreatedBy      snowflake.ID  `gorm:"not null" json:"created_by"`
	AssignedTo     pq.Int64Array `gorm:"type:bigint[]" json:"assigned_to"`
	Teams          pq.Int64Array `gorm:"type:bigint[]" json:"teams"`
	Name           string        `gorm:"type:text;not null" json:"name"`
	Email          string        `gorm:"type:text" json:"email"`
	Phone          string        `gorm:"type:text" json:"phone"`
	Industry       string        `gorm:"type:text" json:"industry"`
	Website        string        `gorm:"type:text" json:"website"`
	BillingAddress string        `gorm:"type:text" json:"billing_address"`
	Description    string        `gorm:"type:text" json:"description"`
	Status         string        `gorm:"type:text;not null;default:'open'" json:"status"`
	CreatedAt      time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Account) TableName() string { return "accounts" }

type CreateRequest struct {
	Name           string  `json:"name"`
	Email          string  `json:"email"`
	Phone          string  `json:"phone"`
	Industry       string  `json:"industry"`
	Website        string  `json:"website"`
	BillingAddress string  `json:"billing_address"`
	Description    string  `json:"description"`
	AssignedTo     []int64 `json:"assigned_to"`
	Teams          []int64 `json:"teams"`
}

type UpdateRequest struct {
	Name           *string  `json:"name,omitempty"`
	Email          *string  `json:"email,omitempty"`
	Phone          *string  `json:"phone,omitempty"`
	Industry       *string  `json:"industry,omitempty"`
	Website        *string  `json:"website,omitempty"`
	BillingAddress *string  `json:"billing_address,omitempty"`
	Description    *string  `json:"description,omitempty"`
	Status         *string  `json:"status,omitempty"`
	AssignedTo     *[]int64 `json:"assigned_to,omitempty"`
	Teams          *[]int64 `json:"teams,omitempty"`
}

type ListQuery struct {
	Status string
	Limit  int
	Offset int
}

type Service interface {
	List(ctx context.Context, orgID snowflake.ID, q ListQuery) ([]*Account, int64, error)
	Get(ctx context.Context, orgID, accountID snowflake.ID) (*Account, error)
	Create(ctx context.Context, orgID snowflake.ID, req CreateRequest) (*Account, error)
	Update(ctx context.Context, orgID, accountID snowflake.ID, req UpdateRequest) (*Account, error)
	Delete(ctx context.Context, orgID, accountID snowflake.ID) error
}
