package shop

import (
	"github.com/fixology/fixology/internal/shop/repository"
	"github.com/fixology/fixology/internal/shop/service"
	"go.uber.org/fx"
)

var Module = fx.Module("shop.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
