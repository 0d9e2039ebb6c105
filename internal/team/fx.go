package team

import (
	"github.com/opencrmhq/opencrm/internal/access"
	"github.com/opencrmhq/opencrm/internal/team/domain"
	"github.com/opencrmhq/opencrm/internal/team/service"
	"github.com/opencrmhq/opencrm/pkg/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("team.service",
	fx.Provide(repository.ProvideStore[domain.Team]),
	fx.Provide(service.New),
	fx.Provide(func(svc domain.Service) access.TeamSource { return svc }),
)
