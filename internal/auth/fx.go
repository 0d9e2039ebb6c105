package auth

import (
	"github.com/opencrmhq/opencrm/internal/auth/repository"
	"github.com/opencrmhq/opencrm/internal/auth/service"
	"go.uber.org/fx"
)

var Module = fx.Module("auth.service",
	fx.Provide(repository.New),
	fx.Provide(service.New),
)
