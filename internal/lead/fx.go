package lead

import (
	"github.com/opencrmhq/opencrm/internal/lead/domain"
	"github.com/opencrmhq/opencrm/internal/lead/service"
	"github.com/opencrmhq/opencrm/pkg/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("lead.service",
	fx.Provide(repository.ProvideStore[domain.Lead]),
	fx.Provide(service.New),
)
