// Package orgcontext threads the resolved tenant through a request.
//
// The org id, the caller's profile and the tenant-bound database handle
// are attached explicitly to the request context by the middleware; no
// package-level state is involved.
package orgcontext

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	orgdomain "github.com/opencrmhq/opencrm/internal/organization/domain"
	"gorm.io/gorm"
)

type orgKey struct{}
type profileKey struct{}
type dbKey struct{}

// WithOrgID stores the resolved org id in the context.
func WithOrgID(ctx context.Context, orgID snowflake.ID) context.Context {
	return context.WithValue(ctx, orgKey{}, orgID)
}

// OrgIDFromContext returns the org id from context, if set.
func OrgIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	if ctx == nil {
		return 0, false
	}
	switch typed := ctx.Value(orgKey{}).(type) {
	case snowflake.ID:
		if typed != 0 {
			return typed, true
		}
	case int64:
		if typed != 0 {
			return snowflake.ID(typed), true
		}
	case string:
		parsed, err := snowflake.ParseString(strings.TrimSpace(typed))
		if err == nil && parsed != 0 {
			return parsed, true
		}
	}
	return 0, false
}

// WithProfile stores the caller's active profile in the context.
func WithProfile(ctx context.Context, profile *orgdomain.Profile) context.Context {
	return context.WithValue(ctx, profileKey{}, profile)
}

// ProfileFromContext returns the caller's profile, if resolved.
func ProfileFromContext(ctx context.Context) (*orgdomain.Profile, bool) {
	if ctx == nil {
		return nil, false
	}
	profile, ok := ctx.Value(profileKey{}).(*orgdomain.Profile)
	if !ok || profile == nil {
		return nil, false
	}
	return profile, true
}

// WithDB stores the tenant-bound gorm handle in the context. The handle
// is pinned to a single connection whose session carries the org
// setting; it is only valid for the lifetime of the request.
func WithDB(ctx context.Context, db *gorm.DB) context.Context {
	return context.WithValue(ctx, dbKey{}, db)
}

// DBFromContext returns the tenant-bound handle when present, otherwise
// the fallback. Callers outside a request scope (migrations, seeding,
// background jobs that manage their own scope) pass the shared handle.
func DBFromContext(ctx context.Context, fallback *gorm.DB) *gorm.DB {
	if ctx == nil {
		return fallback
	}
	if db, ok := ctx.Value(dbKey{}).(*gorm.DB); ok && db != nil {
		return db
	}
	return fallback
}
