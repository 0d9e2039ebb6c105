// Package domain contains the support case model and service contract.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lib/pq"
)

const (
	StatusNew      = "new"
	StatusAssigned = "assigned"
	StatusPending  = "pending"
	StatusClosed   = "closed"

	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

var (
	ErrNotFound        = errors.New("case_not_found")
	ErrInvalidName     = errors.New("invalid_case_name")
	ErrInvalidStatus   = errors.New("invalid_case_status")
	ErrInvalidPriority = errors.New("invalid_case_priority")
)

var validStatuses = map[string]struct{}{
	StatusNew: {}, StatusAssigned: {}, StatusPending: {}, StatusClosed: {},
}

var validPriorities = map[string]struct{}{
	PriorityLow: {}, PriorityNormal: {}, PriorityHigh: {}, PriorityUrgent: {},
}

func ValidStatus(status string) bool {
	_, ok := validStatuses[status]
	return ok
}

func ValidPriority(priority string) bool {
	_, ok := validPriorities[priority]
	return ok
}

// Case is a support ticket. The table name is a reserved SQL word, so
// every raw reference to it must be quoted.
type Case struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID  `gorm:"not null;index" json:"org_id"`
	CreatedBy   snowflake.ID  `gorm:"not null" json:"created_by"`
	AssignedTo  pq.Int64Array `gorm:"type:bigint[]" json:"assigned_to"`
	Teams       pq.Int64Array `gorm:"type:bigint[]" json:"teams"`
	AccountID   *snowflake.ID `gorm:"index" json:"account_id,omitempty"`
	ContactID   *snowflake.ID `gorm:"index" json:"contact_id,omitempty"`
	Name        string        `gorm:"type:text;not null" json:"name"`
	CaseType    string        `gorm:"type:text" json:"case_type"`
	Status      string        `gorm:"type:text;not null;default:'new'" json:"status"`
	Priority    string        `gorm:"type:text;not null;default:'normal'" json:"priority"`
	Description string        `gorm:"type:text" json:"description"`
	ClosedAt    *time.Time    `json:"closed_at,omitempty"`
	CreatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Case) TableName() string { return "case" }

type CreateRequest struct {
	Name        string        `json:"name"`
	CaseType    string        `json:"case_type"`
	Priority    string        `json:"priority"`
	AccountID   *snowflake.ID `json:"account_id,omitempty"`
	ContactID   *snowflake.ID `json:"contact_id,omitempty"`
	Description string        `json:"description"`
	AssignedTo  []int64       `json:"assigned_to"`
	Teams       []int64       `json:"teams"`
}

type UpdateRequest struct {
	Name        *string  `json:"name,omitempty"`
	CaseType    *string  `json:"case_type,omitempty"`
	Status      *string  `json:"status,omitempty"`
	Priority    *string  `json:"priority,omitempty"`
	Description *string  `json:"description,omitempty"`
	AssignedTo  *[]int64 `json:"assigned_to,omitempty"`
	Teams       *[]int64 `json:"teams,omitempty"`
}

type ListQuery struct {
	Status   string
	Priority string
	Limit    int
	Offset   int
}

type Service interface {
	List(ctx context.Context, orgID snowflake.ID, q ListQuery) ([]*Case, int64, error)
	Get(ctx context.Context, orgID, caseID snowflake.ID) (*Case, error)
	Create(ctx context.Context, orgID snowflake.ID, req CreateRequest) (*Case, error)
	Update(ctx context.Context, orgID, caseID snowflake.ID, req UpdateRequest) (*Case, error)
	Delete(ctx context.Context, orgID, caseID snowflake.ID) error
}
