package appconfig

import (
	"context"

	"amulet-controlplane/pkg/router"

	"go.uber.org/fx"
)

var Module = fx.Module("appconfig.service",
	fx.Provide(NewService, NewHandler),
	fx.Invoke(registerRoutes),
	fx.Invoke(seed),
)

func registerRoutes(h *Handler, admin router.AdminRouter) {
	h.Register(admin)
}

func seed(lc fx.Lifecycle, svc *Service) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return svc.Seed(ctx)
		},
	})
}
