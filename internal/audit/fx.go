package audit

import (
	"github.com/opencrmhq/opencrm/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(service.New),
)
