package caserecord

import (
	"github.com/opencrmhq/opencrm/internal/caserecord/domain"
	"github.com/opencrmhq/opencrm/internal/caserecord/service"
	"github.com/opencrmhq/opencrm/pkg/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("case.service",
	fx.Provide(repository.ProvideStore[domain.Case]),
	fx.Provide(service.New),
)
