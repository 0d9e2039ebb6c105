package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	authdomain "github.com/opencrmhq/opencrm/internal/auth/domain"
	"github.com/opencrmhq/opencrm/internal/auth/session"
	"github.com/opencrmhq/opencrm/internal/config"
	"github.com/opencrmhq/opencrm/internal/orgcontext"
	orgdomain "github.com/opencrmhq/opencrm/internal/organization/domain"
	"github.com/opencrmhq/opencrm/pkg/db"
	"github.com/opencrmhq/opencrm/pkg/rls"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type stubAuthService struct {
	authdomain.Service

	session *authdomain.Session
	err     error
}

func (s *stubAuthService) Authenticate(ctx context.Context, rawToken string) (*authdomain.Session, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.session, nil
}

type stubOrgService struct {
	orgdomain.Service

	profile *orgdomain.Profile
	err     error
	calls   int
}

func (s *stubOrgService) ActiveProfile(ctx context.Context, orgID, userID snowflake.ID) (*orgdomain.Profile, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.profile, nil
}

func newTestServer(t *testing.T, authsvc authdomain.Service, orgSvc orgdomain.Service) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := db.NewTest()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}

	cfg := config.Config{OrgHeader: "org"}
	r := gin.New()
	r.Use(ErrorHandlingMiddleware())

	return &Server{
		engine:          r,
		cfg:             cfg,
		db:              conn,
		guard:           rls.NewGuard(conn, zap.NewNop(), nil),
		sessions:        session.NewManager(cfg),
		authsvc:         authsvc,
		organizationSvc: orgSvc,
	}
}

func doRequest(s *Server, withCookie bool, orgHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if withCookie {
		req.AddCookie(&http.Cookie{Name: session.DefaultCookieName, Value: "token"})
	}
	if orgHeader != "" {
		req.Header.Set("org", orgHeader)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func activeSession() *authdomain.Session {
	return &authdomain.Session{ID: snowflake.ID(100), UserID: snowflake.ID(200)}
}

func activeProfile(orgID snowflake.ID) *orgdomain.Profile {
	return &orgdomain.Profile{
		ID:       snowflake.ID(300),
		OrgID:    orgID,
		UserID:   snowflake.ID(200),
		Role:     orgdomain.RoleUser,
		IsActive: true,
	}
}

func TestAuthRequiredRejectsMissingCookie(t *testing.T) {
	s := newTestServer(t, &stubAuthService{session: activeSession()}, &stubOrgService{})

	handled := false
	s.engine.GET("/protected", s.AuthRequired(), func(c *gin.Context) {
		handled = true
	})

	w := doRequest(s, false, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if handled {
		t.Fatal("handler must not run without a session")
	}
}

func TestAuthRequiredRejectsExpiredSession(t *testing.T) {
	s := newTestServer(t, &stubAuthService{err: authdomain.ErrSessionExpired}, &stubOrgService{})

	s.engine.GET("/protected", s.AuthRequired(), func(c *gin.Context) {
		t.Fatal("handler must not run with an expired session")
	})

	w := doRequest(s, true, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestOrgContextRejectsMissingHeader(t *testing.T) {
	orgSvc := &stubOrgService{profile: activeProfile(1)}
	s := newTestServer(t, &stubAuthService{session: activeSession()}, orgSvc)

	s.engine.GET("/protected", s.AuthRequired(), s.OrgContext(), func(c *gin.Context) {
		t.Fatal("handler must not run without an org header")
	})

	w := doRequest(s, true, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if orgSvc.calls != 0 {
		t.Fatal("no membership lookup may happen without an org header")
	}
}

func TestOrgContextRejectsMalformedHeader(t *testing.T) {
	s := newTestServer(t, &stubAuthService{session: activeSession()}, &stubOrgService{})

	s.engine.GET("/protected", s.AuthRequired(), s.OrgContext(), func(c *gin.Context) {
		t.Fatal("handler must not run with a malformed org header")
	})

	w := doRequest(s, true, "not-a-number")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestOrgContextRejectsInactiveProfile(t *testing.T) {
	orgSvc := &stubOrgService{err: orgdomain.ErrProfileInactive}
	s := newTestServer(t, &stubAuthService{session: activeSession()}, orgSvc)

	s.engine.GET("/protected", s.AuthRequired(), s.OrgContext(), func(c *gin.Context) {
		t.Fatal("handler must not run for a deactivated membership")
	})

	w := doRequest(s, true, "42")
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	if orgSvc.calls != 1 {
		t.Fatalf("expected one membership lookup, got %d", orgSvc.calls)
	}
}

func TestOrgContextRejectsNonMember(t *testing.T) {
	s := newTestServer(t, &stubAuthService{session: activeSession()}, &stubOrgService{err: orgdomain.ErrProfileNotFound})

	s.engine.GET("/protected", s.AuthRequired(), s.OrgContext(), func(c *gin.Context) {
		t.Fatal("handler must not run for a non-member")
	})

	w := doRequest(s, true, "42")
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestOrgContextEstablishesTenantScope(t *testing.T) {
	orgID := snowflake.ID(42)
	s := newTestServer(t, &stubAuthService{session: activeSession()}, &stubOrgService{profile: activeProfile(orgID)})

	s.engine.GET("/protected", s.AuthRequired(), s.OrgContext(), func(c *gin.Context) {
		ctx := c.Request.Context()
		got, ok := orgcontext.OrgIDFromContext(ctx)
		if !ok || got != orgID {
			t.Errorf("expected org %d in context, got %d (%v)", orgID, got, ok)
		}
		profile, ok := orgcontext.ProfileFromContext(ctx)
		if !ok || profile.OrgID != orgID {
			t.Error("expected resolved profile in context")
		}
		if orgcontext.DBFromContext(ctx, nil) == nil {
			t.Error("expected tenant-bound db handle in context")
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	w := doRequest(s, true, orgID.String())
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

// The panic path crosses three layers: the handler panics, the guard's
// deferred reset must still run on the pinned connection, and only then
// may gin's recovery turn the panic into a 500.
func TestOrgContextResetsOnHandlerPanic(t *testing.T) {
	gin.SetMode(gin.TestMode)

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

	orgID := snowflake.ID(42)
	cfg := config.Config{OrgHeader: "org"}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(ErrorHandlingMiddleware())

	s := &Server{
		engine:          r,
		cfg:             cfg,
		db:              conn,
		guard:           rls.NewGuard(conn, zap.NewNop(), nil),
		sessions:        session.NewManager(cfg),
		authsvc:         &stubAuthService{session: activeSession()},
		organizationSvc: &stubOrgService{profile: activeProfile(orgID)},
	}

	mock.ExpectExec(regexp.QuoteMeta("SELECT set_config($1, $2, false)")).
		WithArgs(rls.ContextVar, orgID.String()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("SELECT set_config($1, '', false)")).
		WithArgs(rls.ContextVar).
		WillReturnResult(sqlmock.NewResult(0, 0))

	s.engine.GET("/protected", s.AuthRequired(), s.OrgContext(), func(c *gin.Context) {
		panic("handler blew up")
	})

	w := doRequest(s, true, orgID.String())
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("org context must be reset when the handler panics: %v", err)
	}
}

func TestRequireSalesAccessDeniesWithoutFlag(t *testing.T) {
	orgID := snowflake.ID(42)
	s := newTestServer(t, &stubAuthService{session: activeSession()}, &stubOrgService{profile: activeProfile(orgID)})

	s.engine.GET("/protected", s.AuthRequired(), s.OrgContext(), s.RequireSalesAccess(), func(c *gin.Context) {
		t.Fatal("handler must not run without sales access")
	})

	w := doRequest(s, true, orgID.String())
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestRequireSalesAccessAdmitsAdmin(t *testing.T) {
	orgID := snowflake.ID(42)
	profile := activeProfile(orgID)
	profile.Role = orgdomain.RoleAdmin
	s := newTestServer(t, &stubAuthService{session: activeSession()}, &stubOrgService{profile: profile})

	s.engine.GET("/protected", s.AuthRequired(), s.OrgContext(), s.RequireSalesAccess(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	w := doRequest(s, true, orgID.String())
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}
