package task

import (
	"github.com/opencrmhq/opencrm/internal/task/domain"
	"github.com/opencrmhq/opencrm/internal/task/service"
	"github.com/opencrmhq/opencrm/pkg/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("task.service",
	fx.Provide(repository.ProvideStore[domain.Task]),
	fx.Provide(service.New),
)
