package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	defaultOutboxRetention = 30 * 24 * time.Hour
	defaultParkedAttempts  = 10
	defaultPruneBatch      = 500
	maxPruneRounds         = 20
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPruner interface {
	PruneRelayed(ctx context.Context, tx *gorm.DB, cutoff time.Time, limit int) (int64, error)
	PruneParked(ctx context.Context, tx *gorm.DB, cutoff time.Time, maxAttempts, limit int) (int64, error)
}

// OutboxRetentionJobParams configure outbox pruning. MaxAttempts must match
// the publisher's limit so that only rows it gave up on count as parked.
type OutboxRetentionJobParams struct {
	Logger      *logger.Logger
	DB          txRunner
	Repository  outboxPruner
	Retention   time.Duration
	MaxAttempts int
	BatchSize   int
}

// NewOutboxRetentionJob builds the job that deletes relayed events and parked
// events older than the retention window.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	job := &outboxRetentionJob{
		logg:        params.Logger,
		db:          params.DB,
		repo:        params.Repository,
		retention:   params.Retention,
		maxAttempts: params.MaxAttempts,
		batch:       params.BatchSize,
		now:         time.Now,
	}
	if job.retention <= 0 {
		job.retention = defaultOutboxRetention
	}
	if job.maxAttempts <= 0 {
		job.maxAttempts = defaultParkedAttempts
	}
	if job.batch <= 0 {
		job.batch = defaultPruneBatch
	}
	return job, nil
}

type outboxRetentionJob struct {
	logg        *logger.Logger
	db          txRunner
	repo        outboxPruner
	retention   time.Duration
	maxAttempts int
	batch       int
	now         func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)

	relayed, err := j.drain(ctx, func(tx *gorm.DB) (int64, error) {
		return j.repo.PruneRelayed(ctx, tx, cutoff, j.batch)
	})
	if err != nil {
		return fmt.Errorf("prune relayed events: %w", err)
	}
	parked, err := j.drain(ctx, func(tx *gorm.DB) (int64, error) {
		return j.repo.PruneParked(ctx, tx, cutoff, j.maxAttempts, j.batch)
	})
	if err != nil {
		return fmt.Errorf("prune parked events: %w", err)
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff.Format(time.RFC3339),
		"relayed_pruned": relayed,
		"parked_pruned":  parked,
	}), "outbox.retention_pruned")
	return nil
}

// drain repeats prune in short transactions until a batch comes back short.
func (j *outboxRetentionJob) drain(ctx context.Context, prune func(tx *gorm.DB) (int64, error)) (int64, error) {
	var total int64
	for round := 0; round < maxPruneRounds; round++ {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		var n int64
		err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
			var err error
			n, err = prune(tx)
			return err
		})
		if err != nil {
			return total, err
		}
		total += n
		if n < int64(j.batch) {
			return total, nil
		}
	}
	j.logg.Warn(j.logg.WithField(ctx, "pruned", total), "outbox.retention_round_limit")
	return total, nil
}
