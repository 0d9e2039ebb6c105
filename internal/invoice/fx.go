package invoice

import (
	"github.com/opencrmhq/opencrm/internal/invoice/domain"
	"github.com/opencrmhq/opencrm/internal/invoice/service"
	"github.com/opencrmhq/opencrm/pkg/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice.service",
	fx.Provide(repository.ProvideStore[domain.Invoice]),
	fx.Provide(repository.ProvideStore[domain.LineItem]),
	fx.Provide(service.New),
)
