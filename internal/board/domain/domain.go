// Package domain contains the kanban board models and service contract.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lib/pq"
)

const (
	MemberRoleOwner  = "owner"
	MemberRoleMember = "member"
)

var (
	ErrNotFound       = errors.New("board_not_found")
	ErrColumnNotFound = errors.New("board_column_not_found")
	ErrTaskNotFound   = errors.New("board_task_not_found")
	ErrInvalidName    = errors.New("invalid_board_name")
	ErrNotMember      = errors.New("not_a_board_member")
	ErrDuplicateMember = errors.New("duplicate_board_member")
)

type Board struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID  `gorm:"not null;index" json:"org_id"`
	CreatedBy   snowflake.ID  `gorm:"not null" json:"created_by"`
	Name        string        `gorm:"type:text;not null" json:"name"`
	Description string        `gorm:"type:text" json:"description"`
	Columns     []Column      `gorm:"foreignKey:BoardID" json:"columns,omitempty"`
	Members     []Member      `gorm:"foreignKey:BoardID" json:"members,omitempty"`
	CreatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Board) TableName() string { return "board" }

type Column struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID `gorm:"not null;index" json:"org_id"`
	BoardID   snowflake.ID `gorm:"not null;index" json:"board_id"`
	Name      string       `gorm:"type:text;not null" json:"name"`
	Position  int          `gorm:"not null;default:0" json:"position"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Column) TableName() string { return "board_column" }

type Task struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID  `gorm:"not null;index" json:"org_id"`
	BoardID     snowflake.ID  `gorm:"not null;index" json:"board_id"`
	ColumnID    snowflake.ID  `gorm:"not null;index" json:"column_id"`
	CreatedBy   snowflake.ID  `gorm:"not null" json:"created_by"`
	AssignedTo  pq.Int64Array `gorm:"type:bigint[]" json:"assigned_to"`
	Title       string        `gorm:"type:text;not null" json:"title"`
	Description string        `gorm:"type:text" json:"description"`
	Position    int           `gorm:"not null;default:0" json:"position"`
	DueDate     *time.Time    `json:"due_date,omitempty"`
	CreatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Task) TableName() string { return "board_task" }

type Member struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID `gorm:"not null;index" json:"org_id"`
	BoardID   snowflake.ID `gorm:"not null;index" json:"board_id"`
	ProfileID snowflake.ID `gorm:"not null;index" json:"profile_id"`
	Role      string       `gorm:"type:text;not null;default:'member'" json:"role"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Member) TableName() string { return "board_member" }

type CreateBoardRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type CreateTaskRequest struct {
	ColumnID    snowflake.ID `json:"column_id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	DueDate     *time.Time   `json:"due_date,omitempty"`
	AssignedTo  []int64      `json:"assigned_to"`
}

type MoveTaskRequest struct {
	ColumnID snowflake.ID `json:"column_id"`
	Position int          `json:"position"`
}

type Service interface {
	ListBoards(ctx context.Context, orgID snowflake.ID) ([]*Board, error)
	// GetBoard returns the board with columns and members preloaded.
	// Non-members are denied unless they are org admins.
	GetBoard(ctx context.Context, orgID, boardID snowflake.ID) (*Board, error)
	// CreateBoard seeds the configured default columns and enrolls the
	// creator as owner.
	CreateBoard(ctx context.Context, orgID snowflake.ID, req CreateBoardRequest) (*Board, error)
	DeleteBoard(ctx context.Context, orgID, boardID snowflake.ID) error

	AddMember(ctx context.Context, orgID, boardID, profileID snowflake.ID) (*Member, error)
	RemoveMember(ctx context.Context, orgID, boardID, profileID snowflake.ID) error

	ListTasks(ctx context.Context, orgID, boardID snowflake.ID) ([]*Task, error)
	CreateTask(ctx context.Context, orgID, boardID snowflake.ID, req CreateTaskRequest) (*Task, error)
	MoveTask(ctx context.Context, orgID, boardID, taskID snowflake.ID, req MoveTaskRequest) (*Task, error)
	DeleteTask(ctx context.Context, orgID, boardID, taskID snowflake.ID) error
}
