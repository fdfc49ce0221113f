package challenge

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"omnilypro-gaming/pkg/config"
)

type Scheduler struct {
	task   *Task
	hour   int
	minute int
}

func NewScheduler(task *Task, cfg *config.Config) *Scheduler {
	return &Scheduler{
		task:   task,
		hour:   cfg.Gaming.SchedulerHour,
		minute: cfg.Gaming.SchedulerMinute,
	}
}

// StartScheduler wires the daily loop into the fx lifecycle.
func StartScheduler(lc fx.Lifecycle, s *Scheduler) {
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go s.run(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

func (s *Scheduler) run(ctx context.Context) {
	zap.L().Info("[Scheduler] started gaming challenge scheduler")

	for {
		now := time.Now()
		next := nextRunTime(now, s.hour, s.minute)

		sleepDuration := next.Sub(now)
		zap.L().Info("[Scheduler] next run scheduled",
			zap.Time("next_run", next),
			zap.Duration("sleep_for", sleepDuration),
		)
		select {
		case <-time.After(sleepDuration):
			s.runDaily(ctx)
		case <-ctx.Done():
			zap.L().Warn("[Scheduler] stopped")
			return
		}
	}
}

func (s *Scheduler) runDaily(ctx context.Context) {
	start := time.Now()
	zap.L().Info("[Scheduler] Running daily challenge enqueue job")

	if err := s.task.EnqueueAllTenantsDailyJobs(ctx); err != nil {
		zap.L().Error("[Scheduler] failed enqueue all tenants", zap.Error(err))
		return
	}

	zap.L().Info("[Scheduler] Finished enqueue all tenants",
		zap.Duration("duration", time.Since(start)),
	)
}

// nextRunTime computes the next occurrence of hour:minute after now.
func nextRunTime(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if now.After(next) {
		next = next.Add(24 * time.Hour)
	}
	return next
}

// isoWeekStart reports whether today is Monday, when weekly challenges
// are regenerated.
func isoWeekStart() bool {
	return time.Now().Weekday() == time.Monday
}
