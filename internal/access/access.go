// Package access decides whether the request's caller may touch a
// specific record. It combines the caller's profile from the request
// context with their team memberships and the record's ownership
// metadata.
package access

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/opencrmhq/opencrm/internal/authorization"
	"github.com/opencrmhq/opencrm/internal/orgcontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrDenied = errors.New("access_denied")

// TeamSource resolves the teams a profile belongs to within an org.
type TeamSource interface {
	TeamIDsForProfile(ctx context.Context, orgID, profileID snowflake.ID) ([]snowflake.ID, error)
}

type Checker struct {
	log   *zap.Logger
	teams TeamSource
}

type Params struct {
	fx.In

	Log   *zap.Logger
	Teams TeamSource `optional:"true"`
}

func NewChecker(p Params) *Checker {
	return &Checker{
		log:   p.Log.Named("access"),
		teams: p.Teams,
	}
}

// Can reports whether the caller resolved on ctx may access the record
// described by obj within orgID. Absent profile, tenant mismatch, or a
// failed ownership check all return ErrDenied.
func (c *Checker) Can(ctx context.Context, orgID snowflake.ID, obj authorization.ObjectMeta) error {
	profile, ok := orgcontext.ProfileFromContext(ctx)
	if !ok {
		return ErrDenied
	}

	var teamIDs []snowflake.ID
	if c.teams != nil {
		ids, err := c.teams.TeamIDsForProfile(ctx, orgID, profile.ID)
		if err != nil {
			return err
		}
		teamIDs = ids
	}

	if !authorization.CanAccessObject(profile, orgID, obj, teamIDs) {
		return ErrDenied
	}
	return nil
}

var Module = fx.Module("access",
	fx.Provide(NewChecker),
)
