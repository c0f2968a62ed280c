package refresh

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "classcal/internal/log"
)

// Job is one refresh run.
type Job func(ctx context.Context) error

// Scheduler runs a Job on a standard 5-field cron schedule (descriptors
// like "@hourly" and "@every 30m" are accepted too). Overlapping runs are
// skipped rather than queued.
type Scheduler struct {
	spec     string
	schedule cron.Schedule
	job      Job
	cron     *cron.Cron

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// New validates spec and returns a stopped scheduler. An empty spec gives a
// scheduler that never fires on its own; Trigger still works.
func New(spec string, loc *time.Location, job Job) (*Scheduler, error) {
	if loc == nil {
		loc = time.Local
	}
	spec = strings.TrimSpace(spec)

	s := &Scheduler{spec: spec, job: job, ctx: context.Background()}
	if spec != "" {
		sched, err := cron.ParseStandard(spec)
		if err != nil {
			return nil, fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
		}
		s.schedule = sched
	}

	logger := cronLogger{}
	s.cron = cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if s.schedule != nil {
		s.cron.Schedule(s.schedule, cron.FuncJob(s.run))
	}
	return s, nil
}

// Spec returns the normalized schedule expression.
func (s *Scheduler) Spec() string {
	return s.spec
}

// Next returns the first activation after t, or the zero time when the
// scheduler has no schedule.
func (s *Scheduler) Next(t time.Time) time.Time {
	if s.schedule == nil {
		return time.Time{}
	}
	return s.schedule.Next(t)
}

// Start begins firing the job until ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	runCtx := s.ctx
	s.mu.Unlock()

	s.cron.Start()
	appLog.Info("refresh scheduler started", "spec", s.spec)

	go func() {
		<-runCtx.Done()
		s.Stop()
	}()
}

// Stop halts the schedule and waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	<-s.cron.Stop().Done()
}

// Trigger runs the job once in the caller's goroutine.
func (s *Scheduler) Trigger(ctx context.Context) error {
	return s.job(ctx)
}

func (s *Scheduler) run() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	start := time.Now()
	if err := s.job(ctx); err != nil {
		appLog.Error("scheduled refresh failed", err, "spec", s.spec)
		return
	}
	appLog.Info("scheduled refresh done", "took", time.Since(start).String())
}

// cronLogger routes cron's own messages through the application logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}
