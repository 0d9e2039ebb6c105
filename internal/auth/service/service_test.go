package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/opencrmhq/opencrm/internal/auth/domain"
	"github.com/opencrmhq/opencrm/internal/auth/repository"
	"github.com/opencrmhq/opencrm/pkg/db"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) authdomain.Service {
	t.Helper()

	dbConn, err := db.NewTest()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := dbConn.AutoMigrate(&authdomain.User{}, &authdomain.Session{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	repo, sessionRepo := repository.New(dbConn)
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}

	return New(zap.NewNop(), repo, sessionRepo, node)
}

func TestLoginWrongPassword(t *testing.T) {
	svc := newTestService(t)

	user, err := svc.CreateUser(context.Background(), authdomain.CreateUserRequest{
		Email:    "alice@example.com",
		Password: "correct-password",
	})
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	if user == nil {
		t.Fatal("expected user")
	}

	_, err = svc.Login(context.Background(), authdomain.LoginRequest{
		Email:    "alice@example.com",
		Password: "wrong-password",
	})
	if err != authdomain.ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestCreateUserRejectsDuplicateEmail(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.CreateUser(context.Background(), authdomain.CreateUserRequest{
		Email:    "bob@example.com",
		Password: "strong-password",
	}); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	_, err := svc.CreateUser(context.Background(), authdomain.CreateUserRequest{
		Email:    "bob@example.com",
		Password: "another-password",
	})
	if err != authdomain.ErrUserExists {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestAuthenticateAndLogout(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.CreateUser(context.Background(), authdomain.CreateUserRequest{
		Email:    "carol@example.com",
		Password: "strong-password",
	}); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	result, err := svc.Login(context.Background(), authdomain.LoginRequest{
		Email:    "carol@example.com",
		Password: "strong-password",
	})
	if err != nil {
		t.Fatalf("failed to login: %v", err)
	}
	if result.RawToken == "" {
		t.Fatal("expected session token")
	}

	session, err := svc.Authenticate(context.Background(), result.RawToken)
	if err != nil {
		t.Fatalf("failed to authenticate: %v", err)
	}
	if session.ID != result.SessionID {
		t.Fatalf("expected session %v, got %v", result.SessionID, session.ID)
	}

	if err := svc.Logout(context.Background(), result.RawToken); err != nil {
		t.Fatalf("failed to logout: %v", err)
	}

	if _, err := svc.Authenticate(context.Background(), result.RawToken); err != authdomain.ErrSessionRevoked {
		t.Fatalf("expected ErrSessionRevoked, got %v", err)
	}
}
