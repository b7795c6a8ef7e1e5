package console

import (
	"amulet-controlplane/pkg/router"

	"go.uber.org/fx"
)

var Module = fx.Module("console.service",
	fx.Provide(NewHandler),
	fx.Invoke(registerRoutes),
)

func registerRoutes(h *Handler, public router.PublicRouter) {
	h.Register(public)
}
