package audit

import (
	"github.com/fixology/fixology/internal/audit/repository"
	"github.com/fixology/fixology/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
