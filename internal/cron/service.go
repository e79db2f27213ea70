package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/orderdesk-backend/pkg/logger"
	"github.com/angelmondragon/orderdesk-backend/pkg/metrics"
)

const (
	defaultInterval   = 24 * time.Hour
	defaultJobTimeout = 10 * time.Minute
	releaseTimeout    = 5 * time.Second
)

// Job is one housekeeping task. Jobs run sequentially, in registration order.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type ServiceParams struct {
	Logger   *logger.Logger
	Jobs     []Job
	Lock     Lock
	Metrics  *metrics.JobMetrics
	Interval time.Duration
	// JobTimeout bounds each job run. Zero means ten minutes.
	JobTimeout time.Duration
}

// Service runs the housekeeping jobs on a fixed cadence, one replica at a time.
type Service struct {
	logg       *logger.Logger
	jobs       []Job
	lock       Lock
	metrics    *metrics.JobMetrics
	interval   time.Duration
	jobTimeout time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	jobs := make([]Job, 0, len(params.Jobs))
	names := make(map[string]struct{}, len(params.Jobs))
	for _, job := range params.Jobs {
		if job == nil {
			continue
		}
		if _, dup := names[job.Name()]; dup {
			return nil, fmt.Errorf("duplicate cron job %q", job.Name())
		}
		names[job.Name()] = struct{}{}
		jobs = append(jobs, job)
	}

	s := &Service{
		logg:       params.Logger,
		jobs:       jobs,
		lock:       params.Lock,
		metrics:    params.Metrics,
		interval:   params.Interval,
		jobTimeout: params.JobTimeout,
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	if s.jobTimeout <= 0 {
		s.jobTimeout = defaultJobTimeout
	}
	return s, nil
}

// Run executes a cycle right away and then once per interval until ctx ends. Failed
// cycles are logged; the loop keeps going.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.runCycle(ctx); err != nil {
			s.logg.Error(ctx, "cron.cycle_failed", err)
		}
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron.stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// runCycle takes the lock and runs every job, even after one fails. It returns the
// combined job failures.
func (s *Service) runCycle(ctx context.Context) error {
	release, locked, err := s.lock.TryLock(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.logg.Info(ctx, "cron.cycle_skipped_locked")
		return nil
	}
	defer func() {
		// a fresh context so a shutdown mid-cycle still frees the lease
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if relErr := release(releaseCtx); relErr != nil {
			s.logg.Error(ctx, "cron.lock_release_failed", relErr)
		}
	}()

	started := time.Now()
	var failures error
	ran := 0
	for _, job := range s.jobs {
		if ctx.Err() != nil {
			s.logg.Warn(s.logg.WithField(ctx, "job", job.Name()), "cron.job_skipped_shutdown")
			continue
		}
		ran++
		failures = multierr.Append(failures, s.runJob(ctx, job))
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"jobs_run":    ran,
		"jobs_failed": len(multierr.Errors(failures)),
		"duration_ms": time.Since(started).Milliseconds(),
	}), "cron.cycle_complete")
	return failures
}

func (s *Service) runJob(ctx context.Context, job Job) (err error) {
	jobCtx := s.logg.WithField(ctx, "job", job.Name())
	runCtx, cancel := context.WithTimeout(jobCtx, s.jobTimeout)
	defer cancel()

	started := time.Now()
	defer func() {
		// a panicking job fails its run; the cycle and the worker go on
		if rec := recover(); rec != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name(), rec)
		}
		s.metrics.Track(job.Name(), started, err)
		doneCtx := s.logg.WithField(jobCtx, "duration_ms", time.Since(started).Milliseconds())
		if err != nil {
			s.logg.Error(doneCtx, "cron.job_failed", err)
			return
		}
		s.logg.Info(doneCtx, "cron.job_completed")
	}()

	if err := job.Run(runCtx); err != nil {
		return fmt.Errorf("job %s: %w", job.Name(), err)
	}
	return nil
}
