package order

import (
	"github.com/opencrmhq/opencrm/internal/order/domain"
	"github.com/opencrmhq/opencrm/internal/order/service"
	"github.com/opencrmhq/opencrm/pkg/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("order.service",
	fx.Provide(repository.ProvideStore[domain.Order]),
	fx.Provide(repository.ProvideStore[domain.LineItem]),
	fx.Provide(service.New),
)
