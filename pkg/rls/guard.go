package rls

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/opencrmhq/opencrm/pkg/telemetry"
)

var (
	// ErrNoOrgContext is returned when a tenant scope is requested
	// without a resolved organization.
	ErrNoOrgContext = errors.New("rls: no org context")
)

// Guard acquires and releases org context on database connections.
//
// The session setting is shared per connection, not per request, and
// connections are pooled. The set/reset pair around each request is the
// only thing preventing one tenant's session state from bleeding into
// the next request on the same connection, so release is treated like a
// lock release: unconditional, on every exit path.
type Guard struct {
	db      *gorm.DB
	log     *zap.Logger
	metrics *telemetry.Metrics

	unsupportedOnce sync.Once
}

// NewGuard builds a Guard over the shared gorm handle. metrics may be
// nil; reset failures are then only logged.
func NewGuard(db *gorm.DB, log *zap.Logger, metrics *telemetry.Metrics) *Guard {
	return &Guard{db: db, log: log.Named("rls.guard"), metrics: metrics}
}

// Supported reports whether the backend enforces row-level security.
func (g *Guard) Supported() bool {
	return g.db.Dialector.Name() == "postgres"
}

// WithOrg pins a single pooled connection, sets the org context on it,
// runs fn with a gorm handle bound to that connection, and resets the
// context before the connection returns to the pool. The reset runs on
// normal return, error and panic alike.
//
// set_config is called session-persisting (local=false) because the
// request may run in autocommit mode, where a transaction-scoped
// SET LOCAL would expire after the first statement.
func (g *Guard) WithOrg(ctx context.Context, orgID snowflake.ID, fn func(tx *gorm.DB) error) error {
	if orgID == 0 {
		return ErrNoOrgContext
	}

	if !g.Supported() {
		// Other backends have no RLS equivalent; application-level
		// org filtering remains the only enforcement layer there.
		g.unsupportedOnce.Do(func() {
			g.log.Warn("row-level security unsupported on this backend, relying on application filtering",
				zap.String("dialect", g.db.Dialector.Name()))
		})
		return fn(g.db.WithContext(ctx))
	}

	return g.db.WithContext(ctx).Connection(func(tx *gorm.DB) error {
		if err := setOrg(tx, orgID.String()); err != nil {
			return err
		}
		defer g.reset(tx, orgID)
		return fn(tx)
	})
}

// reset clears the org context on the pinned connection. A failed reset
// would leak this tenant's scope to whichever request picks up the
// connection next, so a failure here is a critical security event.
func (g *Guard) reset(tx *gorm.DB, orgID snowflake.ID) {
	if err := resetOrg(tx); err == nil {
		return
	}
	// Second attempt through a different code path before giving up.
	if err := tx.Exec("RESET " + ContextVar).Error; err != nil {
		g.metrics.RecordResetFailure()
		g.log.Error("org context reset failed, connection may leak tenant scope",
			zap.String("security_event", "rls_context_leak"),
			zap.String("org_id", orgID.String()),
			zap.Error(err))
	}
}

func setOrg(tx *gorm.DB, orgID string) error {
	return tx.Exec("SELECT set_config(?, ?, false)", ContextVar, orgID).Error
}

func resetOrg(tx *gorm.DB) error {
	return tx.Exec("SELECT set_config(?, '', false)", ContextVar).Error
}

// CurrentOrg reads the org context of the current connection. Empty
// string means no context is set. Used by verification paths and
// leak-detection tests, not by request handling.
func CurrentOrg(ctx context.Context, db *gorm.DB) (string, error) {
	var current sql.NullString
	err := db.WithContext(ctx).
		Raw("SELECT NULLIF(current_setting(?, true), '')", ContextVar).
		Scan(&current).Error
	if err != nil {
		return "", err
	}
	return current.String, nil
}
