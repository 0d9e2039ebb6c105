package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/opencrmhq/opencrm/internal/audit/domain"
	"github.com/opencrmhq/opencrm/internal/orgcontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
	}
}

func (s *Service) Record(ctx context.Context, orgID snowflake.ID, actorType string, actorID *string, action, targetType string, targetID *string, metadata map[string]any) {
	if orgID == 0 {
		return
	}
	entry := &domain.Entry{
		ID:         s.genID.Generate(),
		OrgID:      orgID,
		ActorType:  actorType,
		ActorID:    actorID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Metadata:   datatypes.JSONMap(metadata),
		CreatedAt:  time.Now().UTC(),
	}
	db := orgcontext.DBFromContext(ctx, s.db)
	if err := db.WithContext(ctx).Create(entry).Error; err != nil {
		s.log.Error("audit write failed",
			zap.String("action", action),
			zap.String("org_id", orgID.String()),
			zap.Error(err),
		)
	}
}

func (s *Service) List(ctx context.Context, orgID snowflake.ID, filter domain.ListFilter) ([]domain.Entry, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	db := orgcontext.DBFromContext(ctx, s.db).WithContext(ctx).
		Where("org_id = ?", orgID)
	if filter.Action != "" {
		db = db.Where("action = ?", filter.Action)
	}
	var entries []domain.Entry
	err := db.Order("created_at DESC").Limit(limit).Find(&entries).Error
	return entries, err
}
