// Package authorization enforces route-level RBAC for the admin API with
// casbin, persisted through the gorm adapter.
package authorization

import (
	"context"
	"errors"

	"go.uber.org/fx"
)

type Service interface {
	Authorize(ctx context.Context, actor, object, action string) error
}

var (
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
	ErrForbidden     = errors.New("forbidden")
)

var Module = fx.Module("authorization.service",
	fx.Provide(NewEnforcer),
	fx.Provide(NewService),
)
