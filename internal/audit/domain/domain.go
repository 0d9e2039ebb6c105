package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Entry is one row of the security audit trail. The table carries an
// org_id column so entries are isolated per tenant like every other
// org-scoped table.
type Entry struct {
	ID         snowflake.ID      `gorm:"column:id;primaryKey" json:"id"`
	OrgID      snowflake.ID      `gorm:"column:org_id;index" json:"org_id"`
	ActorType  string            `gorm:"column:actor_type" json:"actor_type"`
	ActorID    *string           `gorm:"column:actor_id" json:"actor_id,omitempty"`
	Action     string            `gorm:"column:action;index" json:"action"`
	TargetType string            `gorm:"column:target_type" json:"target_type"`
	TargetID   *string           `gorm:"column:target_id" json:"target_id,omitempty"`
	Metadata   datatypes.JSONMap `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	CreatedAt  time.Time         `gorm:"column:created_at" json:"created_at"`
}

func (Entry) TableName() string { return "security_audit_log" }

type ListFilter struct {
	Action string
	Limit  int
}

type Service interface {
	// Record appends an audit entry. Failures are logged by the
	// implementation and never surfaced to the caller's request path.
	Record(ctx context.Context, orgID snowflake.ID, actorType string, actorID *string, action, targetType string, targetID *string, metadata map[string]any)
	List(ctx context.Context, orgID snowflake.ID, filter ListFilter) ([]Entry, error)
}
