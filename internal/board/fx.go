package board

import (
	"github.com/opencrmhq/opencrm/internal/board/domain"
	"github.com/opencrmhq/opencrm/internal/board/service"
	"github.com/opencrmhq/opencrm/pkg/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("board.service",
	fx.Provide(repository.ProvideStore[domain.Board]),
	fx.Provide(repository.ProvideStore[domain.Column]),
	fx.Provide(repository.ProvideStore[domain.Task]),
	fx.Provide(repository.ProvideStore[domain.Member]),
	fx.Provide(service.New),
)
