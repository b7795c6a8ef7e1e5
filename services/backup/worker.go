package backup

import (
	"context"

	"amulet-controlplane/pkg/task"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Worker handles enqueued snapshot exports: render the full snapshot and
// ship it to object storage.
type Worker struct {
	exporter *Exporter
	uploader *Uploader
}

func NewWorker(exporter *Exporter, uploader *Uploader) *Worker {
	return &Worker{exporter: exporter, uploader: uploader}
}

func (w *Worker) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(task.BackupExportTask, w.handleExport)
}

func (w *Worker) handleExport(ctx context.Context, t *asynq.Task) error {
	export, err := w.exporter.ExportAll(ctx)
	if err != nil {
		zap.L().Error("scheduled backup export failed", zap.Error(err))
		return err
	}

	if err := w.uploader.Upload(ctx, export); err != nil {
		zap.L().Error("scheduled backup upload failed", zap.String("object", export.Filename), zap.Error(err))
		return err
	}
	return nil
}
