package identity

import (
	"context"
	"errors"
	"strings"

	obscontext "github.com/smallbiznis/roomwatt/internal/observability/context"
)

type Role string

const (
	RoleOwner  Role = "owner"
	RoleTenant Role = "tenant"
	RoleDevice Role = "device"
	RoleSystem Role = "system"
)

var (
	ErrInvalidRole    = errors.New("invalid_role")
	ErrInvalidSubject = errors.New("invalid_subject")
	ErrNoActor        = errors.New("no_actor")
)

// Actor is the authenticated caller of a domain operation.
type Actor struct {
	ID   string
	Role Role
}

// System is the actor used by background jobs.
func System() Actor {
	return Actor{ID: "scheduler", Role: RoleSystem}
}

func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	switch role {
	case RoleOwner, RoleTenant, RoleDevice, RoleSystem:
		return role, nil
	default:
		return "", ErrInvalidRole
	}
}

func (a Actor) Validate() error {
	if _, err := ParseRole(string(a.Role)); err != nil {
		return err
	}
	if strings.TrimSpace(a.ID) == "" {
		return ErrInvalidSubject
	}
	return nil
}

// Subject is the casbin subject for the actor.
func (a Actor) Subject() string {
	return string(a.Role) + ":" + strings.TrimSpace(a.ID)
}

func (a Actor) Is(role Role) bool {
	return a.Role == role
}

type actorKey struct{}

func WithActor(ctx context.Context, actor Actor) context.Context {
	ctx = obscontext.WithActor(ctx, string(actor.Role), actor.ID)
	return context.WithValue(ctx, actorKey{}, actor)
}

func FromContext(ctx context.Context) (Actor, error) {
	if ctx == nil {
		return Actor{}, ErrNoActor
	}
	actor, ok := ctx.Value(actorKey{}).(Actor)
	if !ok {
		return Actor{}, ErrNoActor
	}
	return actor, nil
}
