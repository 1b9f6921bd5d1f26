package paymentwebhook

import (
	"context"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

const actorRole = "payment_provider"

type paymentApplier interface {
	ApplyPaymentResult(ctx context.Context, input orders.PaymentResultInput) (*models.Order, error)
}

type Service struct {
	orders paymentApplier
	logg   *logger.Logger
}

func NewService(orders paymentApplier, logg *logger.Logger) (*Service, error) {
	if orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders service required")
	}
	return &Service{orders: orders, logg: logg}, nil
}

// HandleEvent applies a payment outcome to the referenced order.
func (s *Service) HandleEvent(ctx context.Context, event *Event) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment event required")
	}
	status, err := event.PaymentStatus()
	if err != nil {
		return err
	}
	orderID, err := event.OrderID()
	if err != nil {
		return err
	}

	order, err := s.orders.ApplyPaymentResult(ctx, orders.PaymentResultInput{
		OrderID:   orderID,
		Status:    status,
		Reference: event.Data.Reference,
		Actor:     &outbox.ActorRef{Role: actorRole},
	})
	if err != nil {
		return err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"event_id":       event.ID,
			"event_type":     event.Type,
			"order_id":       order.ID.String(),
			"payment_status": string(order.PaymentStatus),
		})
		s.logg.Info(logCtx, "payment.webhook.applied")
	}
	return nil
}
