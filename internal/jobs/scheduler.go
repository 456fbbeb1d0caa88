// Package jobs runs the storefront's periodic maintenance on a cron schedule.
package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/example/ec-storefront/internal/metrics"
	"github.com/robfig/cron/v3"
)

// Runnable is a job triggered by the scheduler.
type Runnable interface {
	Name() string
	Run(ctx context.Context) error
}

type Scheduler struct {
	cron    *cron.Cron
	logger  *slog.Logger
	timeout time.Duration
	mu      sync.Mutex
	started bool
}

const defaultJobTimeout = 2 * time.Minute

// NewScheduler accepts standard five-field specs, optional seconds and descriptors like @every 5m.
func NewScheduler(logger *slog.Logger) *Scheduler {
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Scheduler{
		cron:    cron.New(cron.WithParser(parser), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:  logger.With("component", "jobs"),
		timeout: defaultJobTimeout,
	}
}

func (s *Scheduler) Register(spec string, job Runnable) (cron.EntryID, error) {
	if job == nil {
		return 0, errors.New("scheduler: job is required")
	}
	if spec == "" {
		return 0, errors.New("scheduler: spec is required")
	}
	id, err := s.cron.AddFunc(spec, s.wrap(job))
	if err != nil {
		return 0, err
	}
	s.logger.Info("job registered", "job", job.Name(), "spec", spec)
	return id, nil
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.cron.Start()
	s.started = true
}

// Stop halts scheduling; the returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return context.Background()
	}
	s.started = false
	return s.cron.Stop()
}

func (s *Scheduler) wrap(job Runnable) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		runJob(ctx, s.logger, job)
	}
}

// runJob executes job once with logging and the run counter.
func runJob(ctx context.Context, logger *slog.Logger, job Runnable) {
	start := time.Now()
	if err := job.Run(ctx); err != nil {
		metrics.JobRuns.WithLabelValues(job.Name(), "error").Inc()
		logger.ErrorContext(ctx, "job failed", "job", job.Name(), "error", err, "elapsed", time.Since(start))
		return
	}
	metrics.JobRuns.WithLabelValues(job.Name(), "ok").Inc()
	logger.DebugContext(ctx, "job completed", "job", job.Name(), "elapsed", time.Since(start))
}
