package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	defaultUnpaidTTL     = 48 * time.Hour
	defaultExpireBatch   = 100
	maxExpireBatchRounds = 10
)

// OrderTTLJobParams configure the unpaid order expiry job.
type OrderTTLJobParams struct {
	Logger    *logger.Logger
	Orders    unpaidOrderExpirer
	TTL       time.Duration
	BatchSize int
}

type unpaidOrderExpirer interface {
	ExpireUnpaid(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

// NewOrderTTLJob builds the job that cancels orders left unpaid past the TTL,
// returning their stock and coupon uses.
func NewOrderTTLJob(params OrderTTLJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultUnpaidTTL
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultExpireBatch
	}
	return &orderTTLJob{
		logg:   params.Logger,
		orders: params.Orders,
		ttl:    ttl,
		batch:  batch,
		now:    time.Now,
	}, nil
}

type orderTTLJob struct {
	logg   *logger.Logger
	orders unpaidOrderExpirer
	ttl    time.Duration
	batch  int
	now    func() time.Time
}

func (j *orderTTLJob) Name() string { return "order-ttl" }

func (j *orderTTLJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	var (
		errs    error
		expired int
	)
	for round := 0; round < maxExpireBatchRounds; round++ {
		n, err := j.orders.ExpireUnpaid(ctx, cutoff, j.batch)
		expired += n
		if err != nil {
			errs = multierr.Append(errs, err)
			break
		}
		if n < j.batch {
			break
		}
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"orders_expired": expired,
	})
	j.logg.Info(logCtx, "unpaid order expiry complete")
	if errs != nil {
		return fmt.Errorf("expire unpaid orders: %w", errs)
	}
	return nil
}
