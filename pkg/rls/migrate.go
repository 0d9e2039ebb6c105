package rls

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Migrator applies and rolls back the registry's policies against a live
// database. It tolerates partial schema states: a registry table that
// does not exist yet, or exists without an org_id column, is skipped
// with a diagnostic and never aborts the batch. Connectivity and syntax
// errors remain fatal.
type Migrator struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewMigrator builds a Migrator over the shared gorm handle.
func NewMigrator(db *gorm.DB, log *zap.Logger) *Migrator {
	return &Migrator{db: db, log: log.Named("rls.migrate")}
}

// EnableAll enables RLS on every registry table that exists and carries
// org_id. Tables whose isolation policy already exists are skipped, so
// repeated runs and partial-failure retries are safe.
func (m *Migrator) EnableAll(ctx context.Context) error {
	if !m.supported() {
		return nil
	}
	for _, table := range Tables() {
		if err := m.enableTable(ctx, table); err != nil {
			return err
		}
	}
	return nil
}

// DisableAll drops the policies and disables RLS on every registry
// table. Existence checks are repeated on the way down so rollback is
// safe even when the forward run only partially applied.
func (m *Migrator) DisableAll(ctx context.Context) error {
	if !m.supported() {
		return nil
	}
	for _, table := range Tables() {
		ok, err := m.tableExists(ctx, table)
		if err != nil {
			return err
		}
		if !ok {
			m.log.Debug("table absent, nothing to disable", zap.String("table", table))
			continue
		}
		statements, err := DisablePolicySQL(table)
		if err != nil {
			return err
		}
		for _, stmt := range statements {
			if err := m.db.WithContext(ctx).Exec(stmt).Error; err != nil {
				return err
			}
		}
		m.log.Info("row-level security disabled", zap.String("table", table))
	}
	return nil
}

func (m *Migrator) enableTable(ctx context.Context, table string) error {
	ok, err := m.tableExists(ctx, table)
	if err != nil {
		return err
	}
	if !ok {
		m.log.Warn("skipping rls enable, table does not exist", zap.String("table", table))
		return nil
	}

	ok, err = m.columnExists(ctx, table, "org_id")
	if err != nil {
		return err
	}
	if !ok {
		m.log.Warn("skipping rls enable, table has no org_id column", zap.String("table", table))
		return nil
	}

	ok, err = m.policyExists(ctx, table, IsolationPolicy)
	if err != nil {
		return err
	}
	if ok {
		m.log.Debug("isolation policy already present", zap.String("table", table))
		return nil
	}

	statements, err := EnablePolicySQL(table)
	if err != nil {
		return err
	}
	for _, stmt := range statements {
		if err := m.db.WithContext(ctx).Exec(stmt).Error; err != nil {
			return err
		}
	}
	m.log.Info("row-level security enabled", zap.String("table", table))
	return nil
}

// supported reports whether the backend has row-level security. Other
// engines have no equivalent, so the migration is a logged no-op there
// rather than a failure.
func (m *Migrator) supported() bool {
	if m.db.Dialector.Name() == "postgres" {
		return true
	}
	m.log.Info("row-level security skipped on unsupported backend",
		zap.String("dialect", m.db.Dialector.Name()))
	return false
}

func (m *Migrator) tableExists(ctx context.Context, table string) (bool, error) {
	var exists bool
	err := m.db.WithContext(ctx).Raw(
		`SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = current_schema() AND table_name = ?
		)`, table,
	).Scan(&exists).Error
	return exists, err
}

func (m *Migrator) columnExists(ctx context.Context, table, column string) (bool, error) {
	var exists bool
	err := m.db.WithContext(ctx).Raw(
		`SELECT EXISTS (
			SELECT 1 FROM information_schema.columns
			WHERE table_schema = current_schema() AND table_name = ? AND column_name = ?
		)`, table, column,
	).Scan(&exists).Error
	return exists, err
}

func (m *Migrator) policyExists(ctx context.Context, table, policy string) (bool, error) {
	var exists bool
	err := m.db.WithContext(ctx).Raw(
		`SELECT EXISTS (
			SELECT 1 FROM pg_policies
			WHERE schemaname = current_schema() AND tablename = ? AND policyname = ?
		)`, table, policy,
	).Scan(&exists).Error
	return exists, err
}
