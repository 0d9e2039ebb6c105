package contact

import (
	"github.com/opencrmhq/opencrm/internal/contact/domain"
	"github.com/opencrmhq/opencrm/internal/contact/service"
	"github.com/opencrmhq/opencrm/pkg/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("contact.service",
	fx.Provide(repository.ProvideStore[domain.Contact]),
	fx.Provide(service.New),
)
