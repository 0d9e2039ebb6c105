// Package domain contains the contact model and service contract.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lib/pq"
)

var (
	ErrNotFound     = errors.New("contact_not_found")
	ErrInvalidEmail = errors.New("invalid_contact_email")
)

type Contact struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID  `gorm:"not null;index" json:"org_id"`
	CreatedBy   snowflake.ID  `gorm:"not null" json:"created_by"`
	AssignedTo  pq.Int64Array `gorm:"type:bigint[]" json:"assigned_to"`
	Teams       pq.Int64Array `gorm:"type:bigint[]" json:"teams"`
	FirstName   string        `gorm:"type:text;not null" json:"first_name"`
	LastName    string        `gorm:"type:text" json:"last_name"`
	Email       string        `gorm:"type:text;not null;index" json:"email"`
	Phone       string        `gorm:"type:text" json:"phone"`
	Title       string        `gorm:"type:text" json:"title"`
	Address     string        `gorm:"type:text" json:"address"`
	Description string        `gorm:"type:text" json:"description"`
	DoNotCall   bool          `gorm:"not null;default:false" json:"do_not_call"`
	CreatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Contact) TableName() string { return "contacts" }

type CreateRequest struct {
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
	Email       string  `json:"email"`
	Phone       string  `json:"phone"`
	Title       string  `json:"title"`
	Address     string  `json:"address"`
	Description string  `json:"description"`
	DoNotCall   bool    `json:"do_not_call"`
	AssignedTo  []int64 `json:"assigned_to"`
	Teams       []int64 `json:"teams"`
}

type UpdateRequest struct {
	FirstName   *string  `json:"first_name,omitempty"`
	LastName    *string  `json:"last_name,omitempty"`
	Email       *string  `json:"email,omitempty"`
	Phone       *string  `json:"phone,omitempty"`
	Title       *string  `json:"title,omitempty"`
	Address     *string  `json:"address,omitempty"`
	Description *string  `json:"description,omitempty"`
	DoNotCall   *bool    `json:"do_not_call,omitempty"`
	AssignedTo  *[]int64 `json:"assigned_to,omitempty"`
	Teams       *[]int64 `json:"teams,omitempty"`
}

type ListQuery struct {
	Limit  int
	Offset int
}

type Service interface {
	List(ctx context.Context, orgID snowflake.ID, q ListQuery) ([]*Contact, int64, error)
	Get(ctx context.Context, orgID, contactID snowflake.ID) (*Contact, error)
	Create(ctx context.Context, orgID snowflake.ID, req CreateRequest) (*Contact, error)
	Update(ctx context.Context, orgID, contactID snowflake.ID, req UpdateRequest) (*Contact, error)
	Delete(ctx context.Context, orgID, contactID snowflake.ID) error
}
