package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

const (
	defaultInterval   = 15 * time.Minute
	defaultJobTimeout = 5 * time.Minute
)

// ErrLockLost stops a cycle whose lease expired or was taken over mid-run.
var ErrLockLost = errors.New("cron lock lost")

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
	// JobTimeout bounds a single job. Keep it below the lock TTL.
	JobTimeout time.Duration
}

// Service runs the registered jobs in order once per interval, on at most one
// worker at a time.
type Service struct {
	logg       *logger.Logger
	registry   *Registry
	lock       Lock
	metrics    *metrics.CronJobMetrics
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
	svc := &Service{
		logg:       params.Logger,
		registry:   params.Registry,
		lock:       params.Lock,
		metrics:    params.Metrics,
		interval:   params.Interval,
		jobTimeout: params.JobTimeout,
	}
	if svc.registry == nil {
		svc.registry = &Registry{}
	}
	if svc.interval <= 0 {
		svc.interval = defaultInterval
	}
	if svc.jobTimeout <= 0 {
		svc.jobTimeout = defaultJobTimeout
	}
	return svc, nil
}

// Run ticks until ctx is canceled. A failed cycle is logged and the next tick
// proceeds as normal.
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

// RunOnce executes a single cycle and returns every job failure.
func (s *Service) RunOnce(ctx context.Context) error {
	return s.runCycle(ctx)
}

func (s *Service) runCycle(ctx context.Context) error {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		s.metrics.ObserveCycle(metrics.CycleFailed)
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.metrics.ObserveCycle(metrics.CycleSkipped)
		s.logg.Info(ctx, "cron.cycle_skipped")
		return nil
	}
	defer func() {
		if relErr := s.lock.Release(context.WithoutCancel(ctx)); relErr != nil {
			s.logg.Error(ctx, "cron.lock_release_failed", relErr)
		}
	}()

	jobs := s.registry.Jobs()
	cycleCtx := s.logg.WithField(ctx, "jobs", len(jobs))
	s.logg.Info(cycleCtx, "cron.cycle_started")
	start := time.Now()

	var failures error
	for i, job := range jobs {
		if ctx.Err() != nil {
			failures = multierr.Append(failures, ctx.Err())
			break
		}
		if jobErr := s.runJob(ctx, job); jobErr != nil {
			failures = multierr.Append(failures, fmt.Errorf("%s: %w", job.Name(), jobErr))
		}
		if i == len(jobs)-1 {
			break
		}
		held, extErr := s.lock.Extend(ctx)
		if extErr != nil || !held {
			s.metrics.ObserveCycle(metrics.CycleLockLost)
			s.logg.Warn(s.logg.WithField(cycleCtx, "remaining_jobs", len(jobs)-i-1), "cron.lock_lost")
			return multierr.Combine(failures, ErrLockLost, extErr)
		}
	}

	outcome := metrics.CycleCompleted
	if failures != nil {
		outcome = metrics.CycleFailed
	}
	s.metrics.ObserveCycle(outcome)
	s.logg.Info(s.logg.WithFields(cycleCtx, map[string]any{
		"duration_ms": time.Since(start).Milliseconds(),
		"failed_jobs": len(multierr.Errors(failures)),
	}), "cron.cycle_finished")
	return failures
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	jobCtx := s.logg.WithField(ctx, "job", job.Name())
	jobCtx, cancel := context.WithTimeout(jobCtx, s.jobTimeout)
	defer cancel()

	start := time.Now()
	err := job.Run(jobCtx)
	s.metrics.Observe(job.Name(), start, err)

	jobCtx = s.logg.WithField(jobCtx, "duration_ms", time.Since(start).Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "cron.job_failed", err)
		return err
	}
	s.logg.Info(jobCtx, "cron.job_succeeded")
	return nil
}
