// Package scheduler triggers collection syncs on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rtuszik/discogsdash/internal/app"
	"github.com/rtuszik/discogsdash/internal/logger"
)

// Runner starts one sync run.
type Runner interface {
	StartSync(ctx context.Context) (*app.SyncResult, error)
}

// Scheduler fires the runner on a standard 5-field cron expression. A
// disabled scheduler still satisfies suture.Service and just waits.
type Scheduler struct {
	expr     string
	schedule cron.Schedule
	runner   Runner
	Logger   *logger.Logger
}

// New parses expr. An empty expression disables the timer; an invalid one
// is logged and also disables it.
func New(expr string, runner Runner, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Discard()
	}
	s := &Scheduler{
		expr:   expr,
		runner: runner,
		Logger: log.WithComponent("scheduler"),
	}
	if expr == "" {
		s.Logger.Info("Sync schedule not set, timer disabled")
		return s
	}

	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		s.Logger.Error("Invalid sync schedule, timer disabled", "schedule", expr, "error", err)
		return s
	}
	s.schedule = schedule
	return s
}

// Enabled reports whether a valid schedule is armed.
func (s *Scheduler) Enabled() bool {
	return s.schedule != nil
}

// NextRun returns the next activation after now, or the zero time when
// disabled.
func (s *Scheduler) NextRun(now time.Time) time.Time {
	if s.schedule == nil {
		return time.Time{}
	}
	return s.schedule.Next(now)
}

// Serve implements suture.Service. Runs triggered by the timer inherit ctx
// so shutdown cancels a sync in flight.
func (s *Scheduler) Serve(ctx context.Context) error {
	if s.schedule == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	c := cron.New(cron.WithLogger(cronLogger{s.Logger}))
	c.Schedule(s.schedule, cron.FuncJob(func() { s.run(ctx) }))
	c.Start()
	s.Logger.Info("Sync schedule armed", "schedule", s.expr, "next_run", s.NextRun(time.Now()))

	<-ctx.Done()
	<-c.Stop().Done()
	return ctx.Err()
}

func (s *Scheduler) String() string {
	return "sync-scheduler"
}

func (s *Scheduler) run(ctx context.Context) {
	result, err := s.runner.StartSync(ctx)
	switch {
	case errors.Is(err, app.ErrSyncInProgress):
		s.Logger.Info("Scheduled sync skipped, a run is already in progress")
	case err != nil:
		s.Logger.Error("Scheduled sync failed", "error", err)
	default:
		s.Logger.Info("Scheduled sync finished", "run_id", result.RunID, "items", result.ItemCount)
	}
}

// cronLogger adapts the slog wrapper to cron.Logger.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
