package backup

import (
	"amulet-controlplane/pkg/router"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
)

var Module = fx.Module("backup.service",
	fx.Provide(NewExporter, NewUploader, NewWorker, NewHandler, NewScheduler),
	fx.Invoke(registerRoutes, registerWorker, StartScheduler),
)

func registerRoutes(h *Handler, admin router.AdminRouter) {
	h.Register(admin)
}

func registerWorker(w *Worker, mux *asynq.ServeMux) {
	w.Register(mux)
}
