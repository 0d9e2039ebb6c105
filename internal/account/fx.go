package account

import (
	"github.com/opencrmhq/opencrm/internal/account/domain"
	"github.com/opencrmhq/opencrm/internal/account/service"
	"github.com/opencrmhq/opencrm/pkg/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("account.service",
	fx.Provide(repository.ProvideStore[domain.Account]),
	fx.Provide(service.New),
)
