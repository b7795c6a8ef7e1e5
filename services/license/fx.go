package license

import (
	"amulet-controlplane/pkg/router"

	"go.uber.org/fx"
)

var Module = fx.Module("license.service",
	fx.Provide(NewService, NewHandler),
	fx.Invoke(registerRoutes),
)

func registerRoutes(h *Handler, admin router.AdminRouter) {
	h.Register(admin)
}
