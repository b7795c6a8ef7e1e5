package activity

import (
	"amulet-controlplane/pkg/router"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("activity.service",
	fx.Provide(NewService, NewHandler, provideRecorder),
	fx.Invoke(registerRoutes),
)

func provideRecorder(db *gorm.DB, node *snowflake.Node) Recorder {
	return NewRecorder(db, node)
}

func registerRoutes(h *Handler, admin router.AdminRouter) {
	h.Register(admin)
}
