package migration

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/opencrmhq/opencrm/internal/config"
	"github.com/opencrmhq/opencrm/internal/ratelimit"
	"github.com/opencrmhq/opencrm/internal/seed"
	"github.com/opencrmhq/opencrm/pkg/rls"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationLockKey  = "opencrm:migrations:lock"
	migrationLockTTL  = 5 * time.Minute
	migrationLockWait = 2 * time.Second
)

type Params struct {
	fx.In

	Conn   *gorm.DB
	Cfg    config.Config
	Log    *zap.Logger
	Node   *snowflake.Node
	Locker *ratelimit.Locker `optional:"true"`
}

var Module = fx.Module("migrations",
	fx.Invoke(run),
)

func run(p Params) error {
	ctx, cancel := context.WithTimeout(context.Background(), migrationLockTTL)
	defer cancel()

	// When several replicas start at once only one of them runs the
	// migrations; the rest wait for the lock and then find everything
	// already applied.
	if p.Locker != nil {
		token, err := acquireLock(ctx, p.Locker, p.Log)
		if err != nil {
			return err
		}
		defer func() {
			if err := p.Locker.Release(context.Background(), migrationLockKey, token); err != nil {
				p.Log.Warn("failed to release migration lock", zap.Error(err))
			}
		}()
	}

	if p.Conn.Dialector.Name() == "postgres" {
		sqlDB, err := p.Conn.DB()
		if err != nil {
			return err
		}
		if err := RunMigrations(sqlDB); err != nil {
			return err
		}
	} else {
		// Dev backends have no SQL migration path; the schema is
		// derived from the models instead.
		if err := autoMigrate(p.Conn); err != nil {
			return err
		}
	}

	if err := rls.NewMigrator(p.Conn, p.Log).EnableAll(ctx); err != nil {
		return err
	}

	if err := seed.EnsureDefaultOrgAndAdmin(p.Conn, p.Node); err != nil {
		return err
	}
	if p.Cfg.SeedDemoData {
		return seed.EnsureDemoData(p.Conn, p.Node)
	}
	return nil
}

func acquireLock(ctx context.Context, locker *ratelimit.Locker, log *zap.Logger) (string, error) {
	for {
		token, ok, err := locker.TryLock(ctx, migrationLockKey, migrationLockTTL)
		if err != nil {
			return "", err
		}
		if ok {
			return token, nil
		}
		log.Info("another replica holds the migration lock, waiting")
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(migrationLockWait):
		}
	}
}
