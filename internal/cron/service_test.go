package cron

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

type fakeLock struct {
	held      bool
	loseAfter int
	extends   int
	releases  int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Extend(context.Context) (bool, error) {
	f.extends++
	if f.loseAfter > 0 && f.extends >= f.loseAfter {
		f.held = false
		return false, nil
	}
	return f.held, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.releases++
	f.held = false
	return nil
}

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(ctx context.Context) error {
	t.runs++
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("job context has no deadline")
	}
	return t.err
}

func newTestService(t *testing.T, lock Lock, jobs ...Job) *Service {
	t.Helper()
	registry, err := NewRegistry(jobs...)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	svc, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard}),
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.NewRegistry()),
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return svc
}

func TestServiceRunsAllJobsAndReportsFailures(t *testing.T) {
	expire := &testJob{name: "expire-unpaid-orders", err: errors.New("boom")}
	retention := &testJob{name: "outbox-retention"}
	lock := &fakeLock{}
	svc := newTestService(t, lock, expire, retention)

	err := svc.RunOnce(context.Background())
	if err == nil || !strings.Contains(err.Error(), "expire-unpaid-orders: boom") {
		t.Fatalf("expected the failing job in the cycle error, got %v", err)
	}
	if len(multierr.Errors(err)) != 1 {
		t.Fatalf("expected one failure, got %v", multierr.Errors(err))
	}
	if expire.runs != 1 || retention.runs != 1 {
		t.Fatalf("every job should run once, got %d and %d", expire.runs, retention.runs)
	}
	if lock.extends != 1 {
		t.Fatalf("lease should be extended between jobs, got %d", lock.extends)
	}
	if lock.releases != 1 || lock.held {
		t.Fatalf("lock should be released after the cycle")
	}
}

func TestServiceSkipsCycleWhenLockHeld(t *testing.T) {
	job := &testJob{name: "expire-unpaid-orders"}
	svc := newTestService(t, &fakeLock{held: true}, job)

	if err := svc.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("expected job skipped while another instance holds the lock, ran %d", job.runs)
	}
}

func TestServiceStopsWhenLeaseIsLost(t *testing.T) {
	first := &testJob{name: "first"}
	second := &testJob{name: "second"}
	svc := newTestService(t, &fakeLock{loseAfter: 1}, first, second)

	err := svc.RunOnce(context.Background())
	if !errors.Is(err, ErrLockLost) {
		t.Fatalf("expected ErrLockLost, got %v", err)
	}
	if first.runs != 1 || second.runs != 0 {
		t.Fatalf("jobs after a lost lease must not run, got %d and %d", first.runs, second.runs)
	}
}

func TestServiceRunStopsOnCancel(t *testing.T) {
	job := &testJob{name: "expire-unpaid-orders"}
	svc := newTestService(t, &fakeLock{}, job)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := svc.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("canceled cycle should not start jobs, ran %d", job.runs)
	}
}

func TestNewServiceValidates(t *testing.T) {
	if _, err := NewService(ServiceParams{Lock: &fakeLock{}}); err == nil {
		t.Fatal("expected error without logger")
	}
	logg := logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
	if _, err := NewService(ServiceParams{Logger: logg}); err == nil {
		t.Fatal("expected error without lock")
	}
	svc, err := NewService(ServiceParams{Logger: logg, Lock: &fakeLock{}})
	if err != nil {
		t.Fatalf("defaults: %v", err)
	}
	if svc.interval != defaultInterval || svc.jobTimeout != defaultJobTimeout {
		t.Fatalf("defaults not applied: %s %s", svc.interval, svc.jobTimeout)
	}
}
