package paymentwebhook

import (
	"context"
	"errors"

	"github.com/angelmondragon/storefront-backend/pkg/idempotency"
)

const consumerName = "payment-webhook"

// IdempotencyGuard remembers processed callback ids so provider retries are
// acknowledged without touching the order again.
type IdempotencyGuard struct {
	manager *idempotency.Manager
}

func NewIdempotencyGuard(manager *idempotency.Manager) (*IdempotencyGuard, error) {
	if manager == nil {
		return nil, errors.New("idempotency manager is required")
	}
	return &IdempotencyGuard{manager: manager}, nil
}

func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	return g.manager.CheckAndMarkProcessed(ctx, consumerName, eventID)
}

func (g *IdempotencyGuard) Delete(ctx context.Context, eventID string) error {
	return g.manager.Delete(ctx, consumerName, eventID)
}
