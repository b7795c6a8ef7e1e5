package apikey

import (
	"amulet-controlplane/pkg/router"

	"go.uber.org/fx"
)

var Module = fx.Module("apikey.service",
	fx.Provide(NewService, NewHandler),
	fx.Invoke(registerRoutes),
)

func registerRoutes(h *Handler, admin router.AdminRouter) {
	h.Register(admin)
}
