// Package domain contains the task model and service contract.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lib/pq"
)

const (
	StatusNew        = "new"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"

	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

var (
	ErrNotFound        = errors.New("task_not_found")
	ErrInvalidTitle    = errors.New("invalid_task_title")
	ErrInvalidStatus   = errors.New("invalid_task_status")
	ErrInvalidPriority = errors.New("invalid_task_priority")
)

var validStatuses = map[string]struct{}{
	StatusNew: {}, StatusInProgress: {}, StatusCompleted: {},
}

var validPriorities = map[string]struct{}{
	PriorityLow: {}, PriorityMedium: {}, PriorityHigh: {},
}

func ValidStatus(status string) bool {
	_, ok := validStatuses[status]
	return ok
}

func ValidPriority(priority string) bool {
	_, ok := validPriorities[priority]
	return ok
}

type Task struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID  `gorm:"not null;index" json:"org_id"`
	CreatedBy   snowflake.ID  `gorm:"not null" json:"created_by"`
	AssignedTo  pq.Int64Array `gorm:"type:bigint[]" json:"assigned_to"`
	Teams       pq.Int64Array `gorm:"type:bigint[]" json:"teams"`
	AccountID   *snowflake.ID `gorm:"index" json:"account_id,omitempty"`
	ContactID   *snowflake.ID `gorm:"index" json:"contact_id,omitempty"`
	Title       string        `gorm:"type:text;not null" json:"title"`
	Status      string        `gorm:"type:text;not null;default:'new'" json:"status"`
	Priority    string        `gorm:"type:text;not null;default:'medium'" json:"priority"`
	DueDate     *time.Time    `json:"due_date,omitempty"`
	Description string        `gorm:"type:text" json:"description"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	CreatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Task) TableName() string { return "task" }

type CreateRequest struct {
	Title       string        `json:"title"`
	Priority    string        `json:"priority"`
	DueDate     *time.Time    `json:"due_date,omitempty"`
	AccountID   *snowflake.ID `json:"account_id,omitempty"`
	ContactID   *snowflake.ID `json:"contact_id,omitempty"`
	Description string        `json:"description"`
	AssignedTo  []int64       `json:"assigned_to"`
	Teams       []int64       `json:"teams"`
}

type UpdateRequest struct {
	Title       *string    `json:"title,omitempty"`
	Status      *string    `json:"status,omitempty"`
	Priority    *string    `json:"priority,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Description *string    `json:"description,omitempty"`
	AssignedTo  *[]int64   `json:"assigned_to,omitempty"`
	Teams       *[]int64   `json:"teams,omitempty"`
}

type ListQuery struct {
	Status string
	Limit  int
	Offset int
}

type Service interface {
	List(ctx context.Context, orgID snowflake.ID, q ListQuery) ([]*Task, int64, error)
	Get(ctx context.Context, orgID, taskID snowflake.ID) (*Task, error)
	Create(ctx context.Context, orgID snowflake.ID, req CreateRequest) (*Task, error)
	Update(ctx context.Context, orgID, taskID snowflake.ID, req UpdateRequest) (*Task, error)
	Delete(ctx context.Context, orgID, taskID snowflake.ID) error
}
