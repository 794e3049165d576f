package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Scheduler triggers each registered job on its own cadence. A cadence
// is either a standard five-field cron expression or an @every
// interval; overlap protection is the runner's single-flight guard,
// so a trigger is always just a call.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger

	mu     sync.Mutex
	runCtx context.Context
}

func New(logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(&cronLogger{logger: logger})),
		logger: logger,
	}
}

// Register adds a job trigger. Must be called before Run. The trigger
// context is detached from shutdown cancellation: an in-flight run
// always finishes naturally, and Run waits for it through the cron
// stop handle instead of interrupting it.
func (s *Scheduler) Register(jobName, cadence string, trigger func(ctx context.Context)) error {
	_, err := s.cron.AddFunc(cadence, func() {
		trigger(context.WithoutCancel(s.context()))
	})
	if err != nil {
		return fmt.Errorf("register job %s with cadence %q: %w", jobName, cadence, err)
	}
	s.logger.Info("job registered", "job", jobName, "cadence", cadence)
	return nil
}

// Run starts the cadence timers and blocks until ctx is cancelled.
// Shutdown cancels pending triggers and waits for in-flight runs to
// complete naturally; runs are never killed mid-flight.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.runCtx = ctx
	s.mu.Unlock()

	s.cron.Start()
	<-ctx.Done()

	s.logger.Info("scheduler stopping, waiting for in-flight runs")
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
	return ctx.Err()
}

func (s *Scheduler) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runCtx != nil {
		return s.runCtx
	}
	return context.Background()
}

// cronLogger adapts slog to the cron logging interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
