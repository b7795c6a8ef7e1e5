package backup

import (
	"context"
	"time"

	"amulet-controlplane/pkg/config"
	"amulet-controlplane/pkg/task"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Scheduler enqueues the daily snapshot export task. It only runs when
// uploads are enabled and a task broker is configured.
type Scheduler struct {
	cfg      *config.Config
	enqueuer task.Enqueuer
	uploader *Uploader
	cancel   context.CancelFunc
}

func NewScheduler(cfg *config.Config, enqueuer task.Enqueuer, uploader *Uploader) *Scheduler {
	return &Scheduler{cfg: cfg, enqueuer: enqueuer, uploader: uploader}
}

func StartScheduler(lc fx.Lifecycle, s *Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if !s.cfg.Backup.Upload || !s.uploader.Enabled() || s.cfg.Redis.Addr == "" {
				zap.L().Info("[Scheduler] backup schedule disabled")
				return nil
			}
			runCtx, cancel := context.WithCancel(context.Background())
			s.cancel = cancel
			go s.run(runCtx)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if s.cancel != nil {
				s.cancel()
			}
			return nil
		},
	})
}

func (s *Scheduler) run(ctx context.Context) {
	zap.L().Info("[Scheduler] started daily backup scheduler")

	for {
		now := time.Now()
		next := nextRunTime(now, s.cfg.Backup.ScheduleHour, s.cfg.Backup.ScheduleMinute)

		sleepDuration := next.Sub(now)
		zap.L().Info("[Scheduler] next backup scheduled",
			zap.Time("next_run", next),
			zap.Duration("sleep_for", sleepDuration),
		)
		select {
		case <-time.After(sleepDuration):
			s.enqueueExport()
		case <-ctx.Done():
			zap.L().Warn("[Scheduler] stopped")
			return
		}
	}
}

func (s *Scheduler) enqueueExport() {
	_, err := s.enqueuer.Enqueue(asynq.NewTask(task.BackupExportTask, nil), asynq.Queue("low"))
	if err != nil {
		zap.L().Error("[Scheduler] failed to enqueue backup export", zap.Error(err))
		return
	}
	zap.L().Info("[Scheduler] backup export enqueued")
}

// nextRunTime computes the next daily occurrence of hour:minute.
func nextRunTime(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if now.After(next) {
		next = next.Add(24 * time.Hour)
	}
	return next
}
