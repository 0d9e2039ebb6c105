package opportunity

import (
	"github.com/opencrmhq/opencrm/internal/opportunity/domain"
	"github.com/opencrmhq/opencrm/internal/opportunity/service"
	"github.com/opencrmhq/opencrm/pkg/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("opportunity.service",
	fx.Provide(repository.ProvideStore[domain.Opportunity]),
	fx.Provide(repository.ProvideStore[domain.LineItem]),
	fx.Provide(service.New),
)
