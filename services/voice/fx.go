package voice

import (
	"amulet-controlplane/pkg/router"

	"go.uber.org/fx"
)

var Module = fx.Module("voice.service",
	fx.Provide(NewService, NewHandler),
	fx.Invoke(registerRoutes),
)

func registerRoutes(h *Handler, admin router.AdminRouter) {
	h.Register(admin)
}
