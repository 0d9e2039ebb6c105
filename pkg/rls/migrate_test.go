package rls

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	testdb "github.com/opencrmhq/opencrm/pkg/db"
)

func newMockMigrator(t *testing.T) (*Migrator, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("failed to open sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	conn, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open gorm: %v", err)
	}
	return NewMigrator(conn, zap.NewNop()), mock
}

func existsRows(exists bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"exists"}).AddRow(exists)
}

func TestEnableTableAppliesAllStatements(t *testing.T) {
	migrator, mock := newMockMigrator(t)

	mock.ExpectQuery("information_schema.tables").
		WithArgs("lead").
		WillReturnRows(existsRows(true))
	mock.ExpectQuery("information_schema.columns").
		WithArgs("lead", "org_id").
		WillReturnRows(existsRows(true))
	mock.ExpectQuery("pg_policies").
		WithArgs("lead", IsolationPolicy).
		WillReturnRows(existsRows(false))

	mock.ExpectExec("ALTER TABLE \"lead\" ENABLE ROW LEVEL SECURITY").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("ALTER TABLE \"lead\" FORCE ROW LEVEL SECURITY").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DROP POLICY IF EXISTS org_isolation ON \"lead\"").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE POLICY org_isolation ON \"lead\" FOR ALL USING").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DROP POLICY IF EXISTS org_insert_check ON \"lead\"").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE POLICY org_insert_check ON \"lead\" FOR INSERT WITH CHECK").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := migrator.enableTable(context.Background(), "lead"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestEnableTableSkipsMissingTable(t *testing.T) {
	migrator, mock := newMockMigrator(t)

	mock.ExpectQuery("information_schema.tables").
		WithArgs("estimate").
		WillReturnRows(existsRows(false))

	if err := migrator.enableTable(context.Background(), "estimate"); err != nil {
		t.Fatalf("missing table must be skipped, not fatal: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("no DDL may run for a missing table: %v", err)
	}
}

func TestEnableTableSkipsWithoutOrgColumn(t *testing.T) {
	migrator, mock := newMockMigrator(t)

	mock.ExpectQuery("information_schema.tables").
		WithArgs("tags").
		WillReturnRows(existsRows(true))
	mock.ExpectQuery("information_schema.columns").
		WithArgs("tags", "org_id").
		WillReturnRows(existsRows(false))

	if err := migrator.enableTable(context.Background(), "tags"); err != nil {
		t.Fatalf("table without org_id must be skipped: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("no DDL may run without org_id: %v", err)
	}
}

func TestEnableTableIdempotentWhenPolicyPresent(t *testing.T) {
	migrator, mock := newMockMigrator(t)

	mock.ExpectQuery("information_schema.tables").
		WithArgs("invoice").
		WillReturnRows(existsRows(true))
	mock.ExpectQuery("information_schema.columns").
		WithArgs("invoice", "org_id").
		WillReturnRows(existsRows(true))
	mock.ExpectQuery("pg_policies").
		WithArgs("invoice", IsolationPolicy).
		WillReturnRows(existsRows(true))

	if err := migrator.enableTable(context.Background(), "invoice"); err != nil {
		t.Fatalf("rerun over applied table must be a no-op: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("no DDL may run when the policy exists: %v", err)
	}
}

func TestEnableAllNoopOnUnsupportedBackend(t *testing.T) {
	conn, err := testdb.NewTest()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	migrator := NewMigrator(conn, zap.NewNop())
	if err := migrator.EnableAll(context.Background()); err != nil {
		t.Fatalf("unsupported backend must be a logged no-op: %v", err)
	}
}
