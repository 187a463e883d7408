package adminreport

import (
	"context"
	"time"

	"betabay-platform/pkg/config"
	"betabay-platform/pkg/task"
	"betabay-platform/pkg/taskname"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Scheduler enqueues the daily reporting tasks at the configured hour.
type Scheduler struct {
	cfg      *config.Config
	enqueuer task.Enqueuer
	done     chan struct{}
}

func NewScheduler(cfg *config.Config, enqueuer task.Enqueuer) *Scheduler {
	return &Scheduler{cfg: cfg, enqueuer: enqueuer, done: make(chan struct{})}
}

func StartScheduler(lc fx.Lifecycle, s *Scheduler) {
	runCtx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go s.run(runCtx)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			select {
			case <-s.done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	zap.L().Info("[Scheduler] started daily reporting scheduler")

	for {
		now := time.Now()
		next := nextRunTime(now, s.cfg.Payout.SummaryHour, 0)

		sleepDuration := next.Sub(now)
		zap.L().Info("[Scheduler] next run scheduled",
			zap.Time("next_run", next),
			zap.Duration("sleep_for", sleepDuration),
		)

		select {
		case <-time.After(sleepDuration):
			s.runDaily()
		case <-ctx.Done():
			zap.L().Warn("[Scheduler] stopped")
			return
		}
	}
}

func (s *Scheduler) runDaily() {
	start := time.Now()
	zap.L().Info("[Scheduler] enqueueing daily reporting tasks")

	for _, name := range []string{taskname.PayoutSummaryDaily, taskname.RewardPoolReconcile} {
		_, err := s.enqueuer.Enqueue(
			asynq.NewTask(name, nil),
			asynq.Queue("low"),
		)
		if err != nil {
			zap.L().Error("[Scheduler] failed to enqueue task",
				zap.String("task", name),
				zap.Error(err),
			)
			continue
		}
	}

	zap.L().Info("[Scheduler] daily reporting tasks enqueued",
		zap.Duration("duration", time.Since(start)),
	)
}

func nextRunTime(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if now.After(next) {
		next = next.Add(24 * time.Hour)
	}
	return next
}
