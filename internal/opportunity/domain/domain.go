// Package domain contains the opportunity model and service contract.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lib/pq"
)

// Pipeline stages in progression order.
const (
	StageQualification = "qualification"
	StageNeedsAnalysis = "needs_analysis"
	StageProposal      = "proposal"
	StageNegotiation   = "negotiation"
	StageClosedWon     = "closed_won"
	StageClosedLost    = "closed_lost"
)

var (
	ErrNotFound     = errors.New("opportunity_not_found")
	ErrInvalidName  = errors.New("invalid_opportunity_name")
	ErrInvalidStage = errors.New("invalid_opportunity_stage")
)

var validStages = map[string]struct{}{
	StageQualification: {},
	StageNeedsAnalysis: {},
	StageProposal:      {},
	StageNegotiation:   {},
	StageClosedWon:     {},
	StageClosedLost:    {},
}

// ValidStage reports whether stage is a known pipeline stage.
func ValidStage(stage string) bool {
	_, ok := validStages[stage]
	return ok
}

// Opportunity is a potential deal. AmountCents avoids floating point
// money; Probability is a whole percentage.
type Opportunity struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID  `gorm:"not null;index" json:"org_id"`
	CreatedBy   snowflake.ID  `gorm:"not null" json:"created_by"`
	AssignedTo  pq.Int64Array `gorm:"type:bigint[]" json:"assigned_to"`
	Teams       pq.Int64Array `gorm:"type:bigint[]" json:"teams"`
	AccountID   *snowflake.ID `gorm:"index" json:"account_id,omitempty"`
	ContactID   *snowflake.ID `gorm:"index" json:"contact_id,omitempty"`
	Name        string        `gorm:"type:text;not null" json:"name"`
	Stage       string        `gorm:"type:text;not null;default:'qualification'" json:"stage"`
	AmountCents int64         `gorm:"not null;default:0" json:"amount_cents"`
	Currency    string        `gorm:"type:text;not null;default:'USD'" json:"currency"`
	Probability int           `gorm:"not null;default:0" json:"probability"`
	CloseDate   *time.Time    `json:"close_date,omitempty"`
	Description string        `gorm:"type:text" json:"description"`
	LineItems   []LineItem    `gorm:"foreignKey:OpportunityID" json:"line_items,omitempty"`
	CreatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Opportunity) TableName() string { return "opportunity" }

type LineItem struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID          snowflake.ID `gorm:"not null;index" json:"org_id"`
	OpportunityID  snowflake.ID `gorm:"not null;index" json:"opportunity_id"`
	Name           string       `gorm:"type:text;not null" json:"name"`
	Quantity       int64        `gorm:"not null;default:1" json:"quantity"`
	UnitPriceCents int64        `gorm:"not null;default:0" json:"unit_price_cents"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (LineItem) TableName() string { return "opportunity_line_item" }

type LineItemInput struct {
	Name           string `json:"name"`
	Quantity       int64  `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

type CreateRequest struct {
	Name        string          `json:"name"`
	AccountID   *snowflake.ID   `json:"account_id,omitempty"`
	ContactID   *snowflake.ID   `json:"contact_id,omitempty"`
	Stage       string          `json:"stage"`
	AmountCents int64           `json:"amount_cents"`
	Currency    string          `json:"currency"`
	Probability int             `json:"probability"`
	CloseDate   *time.Time      `json:"close_date,omitempty"`
	Description string          `json:"description"`
	AssignedTo  []int64         `json:"assigned_to"`
	Teams       []int64         `json:"teams"`
	LineItems   []LineItemInput `json:"line_items"`
}

type UpdateRequest struct {
	Name        *string    `json:"name,omitempty"`
	Stage       *string    `json:"stage,omitempty"`
	AmountCents *int64     `json:"amount_cents,omitempty"`
	Probability *int       `json:"probability,omitempty"`
	CloseDate   *time.Time `json:"close_date,omitempty"`
	Description *string    `json:"description,omitempty"`
	AssignedTo  *[]int64   `json:"assigned_to,omitempty"`
	Teams       *[]int64   `json:"teams,omitempty"`
}

type ListQuery struct {
	Stage  string
	Limit  int
	Offset int
}

type Service interface {
	List(ctx context.Context, orgID snowflake.ID, q ListQuery) ([]*Opportunity, int64, error)
	Get(ctx context.Context, orgID, opportunityID snowflake.ID) (*Opportunity, error)
	Create(ctx context.Context, orgID snowflake.ID, req CreateRequest) (*Opportunity, error)
	Update(ctx context.Context, orgID, opportunityID snowflake.ID, req UpdateRequest) (*Opportunity, error)
	Delete(ctx context.Context, orgID, opportunityID snowflake.ID) error
}
