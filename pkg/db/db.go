package db

import (
	"context"
	"time"

	"github.com/opencrmhq/opencrm/internal/config"
	obslogger "github.com/opencrmhq/opencrm/internal/observability/logger"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormprom "gorm.io/plugin/prometheus"
)

// Module provides the shared gorm handle.
var Module = fx.Module("db",
	fx.Provide(New),
)

// New opens the database and registers pool lifecycle hooks. The handle
// returned here carries no org context; request paths must go through
// the row-level-security guard before touching org-scoped tables.
func New(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*gorm.DB, error) {
	dbCfg := FromApp(cfg)
	dialector, err := Dialect(dbCfg)
	if err != nil {
		return nil, err
	}

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		Logger:         obslogger.NewGormLogger(obslogger.DefaultGormLoggerConfig()),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	if err := gormDB.Use(otelgorm.NewPlugin(otelgorm.WithDBName(dbCfg.Name))); err != nil {
		return nil, err
	}
	if err := gormDB.Use(gormprom.New(gormprom.Config{
		DBName:          dbCfg.Name,
		RefreshInterval: 15,
	})); err != nil {
		return nil, err
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, err
	}
	if dbCfg.MaxIdleConn > 0 {
		sqlDB.SetMaxIdleConns(dbCfg.MaxIdleConn)
	}
	if dbCfg.MaxOpenConn > 0 {
		sqlDB.SetMaxOpenConns(dbCfg.MaxOpenConn)
	}
	if dbCfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(dbCfg.ConnMaxLifetime) * time.Minute)
	}
	if dbCfg.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(time.Duration(dbCfg.ConnMaxIdleTime) * time.Minute)
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := sqlDB.PingContext(ctx); err != nil {
				return err
			}
			log.Info("database connected",
				zap.String("type", dbCfg.Type),
				zap.String("name", dbCfg.Name),
			)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			_ = ctx
			return sqlDB.Close()
		},
	})

	return gormDB, nil
}
