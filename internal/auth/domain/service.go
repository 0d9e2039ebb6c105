package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	CreateUser(ctx context.Context, req CreateUserRequest) (*User, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	Logout(ctx context.Context, rawToken string) error
	Authenticate(ctx context.Context, rawToken string) (*Session, error)
	UpdateSessionOrgContext(ctx context.Context, sessionID snowflake.ID, activeOrgID *int64, orgIDs []int64) error
	ChangePassword(ctx context.Context, userID snowflake.ID, newPassword string) error
	GetUser(ctx context.Context, userID snowflake.ID) (*User, error)
}

type CreateUserRequest struct {
	Username string
	Email    string
	Password string
}

type LoginRequest struct {
	Email     string
	Password  string
	UserAgent string
	IPAddress string
}

type LoginResult struct {
	Session   *SessionView
	RawToken  string
	ExpiresAt time.Time
	SessionID snowflake.ID
}
