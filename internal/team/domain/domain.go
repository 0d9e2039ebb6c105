// Package domain contains the team model and service contract.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lib/pq"
)

var (
	ErrNotFound    = errors.New("team_not_found")
	ErrInvalidName = errors.New("invalid_team_name")
)

// Team groups profiles so records can be shared with all of them at
// once. Users holds profile ids, not user ids.
type Team struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID  `gorm:"not null;index" json:"org_id"`
	CreatedBy   snowflake.ID  `gorm:"not null" json:"created_by"`
	Name        string        `gorm:"type:text;not null" json:"name"`
	Description string        `gorm:"type:text" json:"description"`
	Users       pq.Int64Array `gorm:"type:bigint[]" json:"users"`
	CreatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Team) TableName() string { return "teams" }

type CreateRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Users       []int64 `json:"users"`
}

type UpdateRequest struct {
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	Users       *[]int64 `json:"users,omitempty"`
}

type Service interface {
	List(ctx context.Context, orgID snowflake.ID) ([]*Team, error)
	Get(ctx context.Context, orgID, teamID snowflake.ID) (*Team, error)
	Create(ctx context.Context, orgID snowflake.ID, req CreateRequest) (*Team, error)
	Update(ctx context.Context, orgID, teamID snowflake.ID, req UpdateRequest) (*Team, error)
	Delete(ctx context.Context, orgID, teamID snowflake.ID) error
	// TeamIDsForProfile lists the teams within orgID that include the
	// profile as a member.
	TeamIDsForProfile(ctx context.Context, orgID, profileID snowflake.ID) ([]snowflake.ID, error)
}
