package authorization

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrForbidden    = errors.New("forbidden")
	ErrUnknownActor = errors.New("unknown_actor")
)

// Service answers action-level authorization questions: may this actor
// perform this action on this object class within this org. Object-level
// ownership checks live in the predicates, not here.
type Service interface {
	// Authorize returns nil when the actor may perform action on object
	// within orgID, ErrForbidden otherwise.
	Authorize(ctx context.Context, actor Actor, orgID snowflake.ID, object, action string) error
	// Grant binds the actor to role within orgID.
	Grant(ctx context.Context, actor Actor, orgID snowflake.ID, role string) error
	// Revoke removes the actor's role binding within orgID.
	Revoke(ctx context.Context, actor Actor, orgID snowflake.ID, role string) error
}

type ActorKind string

const (
	ActorUser   ActorKind = "user"
	ActorSystem ActorKind = "system"
)

type Actor struct {
	Kind ActorKind
	ID   snowflake.ID
}

func UserActor(id snowflake.ID) Actor { return Actor{Kind: ActorUser, ID: id} }

func SystemActor() Actor { return Actor{Kind: ActorSystem} }

const (
	RoleAdminSubject = "role:admin"
	RoleUserSubject  = "role:user"
)
