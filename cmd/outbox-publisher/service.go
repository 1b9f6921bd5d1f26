package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultPublishTimeout = 5 * time.Second
	defaultMaxAttempts    = 10
	defaultChannel        = "domain-events"
	maxBackoff            = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

// broker is the pub/sub side of the relay.
type broker interface {
	Ping(context.Context) error
	Publish(ctx context.Context, channel string, payload []byte) error
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type ServiceParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         dbClient
	Broker     broker
	Repository outboxRepository
	Metrics    *metrics.RelayMetrics
}

// settings are the relay knobs after defaults are applied.
type settings struct {
	channel     string
	batchSize   int
	maxAttempts int
	poll        time.Duration
}

func settingsFrom(cfg config.OutboxConfig) settings {
	s := settings{
		channel:     cfg.Channel,
		batchSize:   cfg.BatchSize,
		maxAttempts: cfg.MaxAttempts,
		poll:        time.Duration(cfg.PollIntervalMS) * time.Millisecond,
	}
	if s.channel == "" {
		s.channel = defaultChannel
	}
	if s.batchSize <= 0 {
		s.batchSize = defaultBatchSize
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = defaultMaxAttempts
	}
	if s.poll <= 0 {
		s.poll = defaultPollInterval
	}
	return s
}

// Service relays committed outbox rows to the broker. Rows are locked for
// the duration of one batch transaction so concurrent publishers skip them.
type Service struct {
	settings
	logg    *logger.Logger
	db      dbClient
	repo    outboxRepository
	broker  broker
	metrics *metrics.RelayMetrics
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Config == nil:
		return nil, errors.New("config is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.Broker == nil:
		return nil, errors.New("broker is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	}
	return &Service{
		settings: settingsFrom(params.Config.Outbox),
		logg:     params.Logger,
		db:       params.DB,
		repo:     params.Repository,
		broker:   params.Broker,
		metrics:  params.Metrics,
	}, nil
}

// Run polls the outbox until ctx is canceled. A batch that found rows is
// followed immediately by the next one; errors back off exponentially.
func (s *Service) Run(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if err := s.broker.Ping(ctx); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}

	wait := s.poll
	for {
		if err := ctx.Err(); err != nil {
			s.logg.Info(ctx, "outbox.relay_stopped")
			return err
		}

		busy, err := s.processBatch(ctx)
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox.batch_failed", err)
			wait = nextBackoff(wait, s.poll, maxBackoff)
		case busy:
			wait = s.poll
			continue
		default:
			wait = s.poll
		}
		if err := pause(ctx, withJitter(wait)); err != nil {
			return err
		}
	}
}

// processBatch relays one batch and reports whether any rows were found.
// Only bookkeeping failures abort the transaction; publish failures are
// recorded per row.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	started := time.Now()
	var size int
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		size = len(rows)
		for _, row := range rows {
			outcome, err := s.deliver(ctx, tx, row)
			if err != nil {
				return err
			}
			s.metrics.ObserveDelivery(row.EventType.String(), outcome)
		}
		return nil
	})
	s.metrics.ObserveBatch(started, size, err)
	return size > 0, err
}

func (s *Service) deliver(ctx context.Context, tx *gorm.DB, row models.OutboxEvent) (string, error) {
	msg, err := buildMessage(row)
	if err != nil {
		return metrics.DeliveryParked, s.park(ctx, tx, row, logFields(row, nil), err)
	}
	fields := logFields(row, &msg.Envelope)

	if pubErr := s.publish(ctx, msg); pubErr != nil {
		attempt := row.AttemptCount + 1
		fields["attempt_count"] = attempt
		if attempt >= s.maxAttempts {
			return metrics.DeliveryParked, s.park(ctx, tx, row, fields, fmt.Errorf("max publish attempts reached: %w", pubErr))
		}
		fields["error"] = pubErr.Error()
		s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox.publish_retry")
		if err := s.repo.MarkFailedTx(tx, row.ID, pubErr); err != nil {
			return "", fmt.Errorf("mark failure %s: %w", row.ID, err)
		}
		return metrics.DeliveryRetried, nil
	}

	if err := s.repo.MarkPublishedTx(tx, row.ID); err != nil {
		return "", fmt.Errorf("mark published %s: %w", row.ID, err)
	}
	s.logg.Info(s.logg.WithFields(ctx, fields), "outbox.published")
	return metrics.DeliveryPublished, nil
}

// park stops retrying a row. Retention prunes it later.
func (s *Service) park(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, fields map[string]any, cause error) error {
	fields["error"] = cause.Error()
	s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox.parked")
	if err := s.repo.MarkTerminalTx(tx, row.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", row.ID, err)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, msg relayMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	return s.broker.Publish(ctx, s.channel, payload)
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// nextBackoff doubles current, starting from base and capped at max.
func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	return min(current*2, max)
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + rand.N(jitterWindow)
}
