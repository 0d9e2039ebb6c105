package rls

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	testdb "github.com/opencrmhq/opencrm/pkg/db"
	"github.com/opencrmhq/opencrm/pkg/telemetry"
)

func newMockGuard(t *testing.T) (*Guard, sqlmock.Sqlmock) {
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
	return NewGuard(conn, zap.NewNop(), nil), mock
}

var (
	setPattern   = regexp.QuoteMeta("SELECT set_config($1, $2, false)")
	resetPattern = regexp.QuoteMeta("SELECT set_config($1, '', false)")
)

func TestWithOrgSetsAndResets(t *testing.T) {
	guard, mock := newMockGuard(t)

	mock.ExpectExec(setPattern).
		WithArgs(ContextVar, "42").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(resetPattern).
		WithArgs(ContextVar).
		WillReturnResult(sqlmock.NewResult(0, 0))

	called := false
	err := guard.WithOrg(context.Background(), snowflake.ID(42), func(tx *gorm.DB) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("callback was not invoked")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestWithOrgResetsOnCallbackError(t *testing.T) {
	guard, mock := newMockGuard(t)

	mock.ExpectExec(setPattern).
		WithArgs(ContextVar, "7").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(resetPattern).
		WithArgs(ContextVar).
		WillReturnResult(sqlmock.NewResult(0, 0))

	wantErr := errors.New("handler failed")
	err := guard.WithOrg(context.Background(), snowflake.ID(7), func(tx *gorm.DB) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("reset must run on the error path: %v", err)
	}
}

func TestWithOrgResetsOnPanic(t *testing.T) {
	guard, mock := newMockGuard(t)

	mock.ExpectExec(setPattern).
		WithArgs(ContextVar, "7").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(resetPattern).
		WithArgs(ContextVar).
		WillReturnResult(sqlmock.NewResult(0, 0))

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		_ = guard.WithOrg(context.Background(), snowflake.ID(7), func(tx *gorm.DB) error {
			panic("boom")
		})
	}()

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("reset must run on the panic path: %v", err)
	}
}

func TestWithOrgFallsBackToResetStatement(t *testing.T) {
	guard, mock := newMockGuard(t)

	mock.ExpectExec(setPattern).
		WithArgs(ContextVar, "9").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(resetPattern).
		WithArgs(ContextVar).
		WillReturnError(errors.New("connection gone sideways"))
	mock.ExpectExec(regexp.QuoteMeta("RESET " + ContextVar)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := guard.WithOrg(context.Background(), snowflake.ID(9), func(tx *gorm.DB) error {
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("fallback reset must run: %v", err)
	}
}

func TestWithOrgCountsResetFailure(t *testing.T) {
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
	metrics := telemetry.NewMetrics()
	guard := NewGuard(conn, zap.NewNop(), metrics)

	mock.ExpectExec(setPattern).
		WithArgs(ContextVar, "11").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(resetPattern).
		WithArgs(ContextVar).
		WillReturnError(errors.New("reset refused"))
	mock.ExpectExec(regexp.QuoteMeta("RESET " + ContextVar)).
		WillReturnError(errors.New("connection dead"))

	before := resetFailureCount(t)
	err = guard.WithOrg(context.Background(), snowflake.ID(11), func(tx *gorm.DB) error {
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := resetFailureCount(t); got != before+1 {
		t.Fatalf("expected reset failure counter to go from %v to %v, got %v", before, before+1, got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func resetFailureCount(t *testing.T) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, family := range families {
		if family.GetName() == "opencrm_org_context_reset_failures_total" {
			return family.GetMetric()[0].GetCounter().GetValue()
		}
	}
	return 0
}

func TestWithOrgRejectsZeroOrg(t *testing.T) {
	guard, mock := newMockGuard(t)

	err := guard.WithOrg(context.Background(), 0, func(tx *gorm.DB) error {
		t.Fatal("callback must not run without an org")
		return nil
	})
	if !errors.Is(err, ErrNoOrgContext) {
		t.Fatalf("expected ErrNoOrgContext, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("no statements may run: %v", err)
	}
}

func TestWithOrgSetFailureSkipsCallback(t *testing.T) {
	guard, mock := newMockGuard(t)

	mock.ExpectExec(setPattern).
		WithArgs(ContextVar, "5").
		WillReturnError(errors.New("set refused"))

	err := guard.WithOrg(context.Background(), snowflake.ID(5), func(tx *gorm.DB) error {
		t.Fatal("callback must not run after a failed set")
		return nil
	})
	if err == nil {
		t.Fatal("expected error from failed set")
	}
	// A failed set never established context, so nothing needs reset.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestWithOrgUnsupportedBackendRunsCallback(t *testing.T) {
	conn, err := testdb.NewTest()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	guard := NewGuard(conn, zap.NewNop(), nil)

	if guard.Supported() {
		t.Fatal("sqlite must not report RLS support")
	}

	called := false
	err = guard.WithOrg(context.Background(), snowflake.ID(3), func(tx *gorm.DB) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("callback must still run on unsupported backends")
	}
}
