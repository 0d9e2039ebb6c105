// Package domain contains the lead model and service contract.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lib/pq"
)

const (
	StatusNew       = "new"
	StatusAssigned  = "assigned"
	StatusInProcess = "in_process"
	StatusConverted = "converted"
	StatusClosed    = "closed"
)

var (
	ErrNotFound         = errors.New("lead_not_found")
	ErrInvalidName      = errors.New("invalid_lead_name")
	ErrInvalidStatus    = errors.New("invalid_lead_status")
	ErrAlreadyConverted = errors.New("lead_already_converted")
)

var validStatuses = map[string]struct{}{
	StatusNew:       {},
	StatusAssigned:  {},
	StatusInProcess: {},
	StatusConverted: {},
	StatusClosed:    {},
}

// ValidStatus reports whether status is a known lead status.
func ValidStatus(status string) bool {
	_, ok := validStatuses[status]
	return ok
}

// Lead is an unqualified prospect. Conversion turns it into an
// account, a contact and an opportunity in one step.
type Lead struct {
	ID            snowflake.ID  `gorm:"primaryKey" json:"id"`
	OrgID         snowflake.ID  `gorm:"not null;index" json:"org_id"`
	CreatedBy     snowflake.ID  `gorm:"not null" json:"created_by"`
	AssignedTo    pq.Int64Array `gorm:"type:bigint[]" json:"assigned_to"`
	Teams         pq.Int64Array `gorm:"type:bigint[]" json:"teams"`
	Title         string        `gorm:"type:text;not null" json:"title"`
	FirstName     string        `gorm:"type:text" json:"first_name"`
	LastName      string        `gorm:"type:text" json:"last_name"`
	Email         string        `gorm:"type:text;index" json:"email"`
	Phone         string        `gorm:"type:text" json:"phone"`
	CompanyName   string        `gorm:"type:text" json:"company_name"`
	Website       string        `gorm:"type:text" json:"website"`
	Source        string        `gorm:"type:text" json:"source"`
	Status        string        `gorm:"type:text;not null;default:'new'" json:"status"`
	OpportunityAmountCents int64 `gorm:"not null;default:0" json:"opportunity_amount_cents"`
	Description   string        `gorm:"type:text" json:"description"`
	ConvertedAt   *time.Time    `json:"converted_at,omitempty"`
	AccountID     *snowflake.ID `json:"account_id,omitempty"`
	ContactID     *snowflake.ID `json:"contact_id,omitempty"`
	OpportunityID *snowflake.ID `json:"opportunity_id,omitempty"`
	CreatedAt     time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Lead) TableName() string { return "lead" }

type CreateRequest struct {
	Title       string  `json:"title"`
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
	Email       string  `json:"email"`
	Phone       string  `json:"phone"`
	CompanyName string  `json:"company_name"`
	Website     string  `json:"website"`
	Source      string  `json:"source"`
	OpportunityAmountCents int64 `json:"opportunity_amount_cents"`
	Description string  `json:"description"`
	AssignedTo  []int64 `json:"assigned_to"`
	Teams       []int64 `json:"teams"`
}

type UpdateRequest struct {
	Title       *string  `json:"title,omitempty"`
	FirstName   *string  `json:"first_name,omitempty"`
	LastName    *string  `json:"last_name,omitempty"`
	Email       *string  `json:"email,omitempty"`
	Phone       *string  `json:"phone,omitempty"`
	CompanyName *string  `json:"company_name,omitempty"`
	Website     *string  `json:"website,omitempty"`
	Source      *string  `json:"source,omitempty"`
	Status      *string  `json:"status,omitempty"`
	OpportunityAmountCents *int64 `json:"opportunity_amount_cents,omitempty"`
	Description *string  `json:"description,omitempty"`
	AssignedTo  *[]int64 `json:"assigned_to,omitempty"`
	Teams       *[]int64 `json:"teams,omitempty"`
}

type ListQuery struct {
	Status string
	Limit  int
	Offset int
}

// ConvertResult reports the records a conversion produced.
type ConvertResult struct {
	Lead          *Lead        `json:"lead"`
	AccountID     snowflake.ID `json:"account_id"`
	ContactID     snowflake.ID `json:"contact_id"`
	OpportunityID snowflake.ID `json:"opportunity_id"`
}

type Service interface {
	List(ctx context.Context, orgID snowflake.ID, q ListQuery) ([]*Lead, int64, error)
	Get(ctx context.Context, orgID, leadID snowflake.ID) (*Lead, error)
	Create(ctx context.Context, orgID snowflake.ID, req CreateRequest) (*Lead, error)
	Update(ctx context.Context, orgID, leadID snowflake.ID, req UpdateRequest) (*Lead, error)
	Delete(ctx context.Context, orgID, leadID snowflake.ID) error
	// Convert qualifies the lead into an account, contact and
	// opportunity. Converting twice returns ErrAlreadyConverted.
	Convert(ctx context.Context, orgID, leadID snowflake.ID) (*ConvertResult, error)
}
