package organization

import (
	"github.com/opencrmhq/opencrm/internal/organization/repository"
	"github.com/opencrmhq/opencrm/internal/organization/service"
	"go.uber.org/fx"
)

var Module = fx.Module("organization.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
