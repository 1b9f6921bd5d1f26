package paymentwebhook

import (
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Event types sent by the payment provider.
const (
	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentFailed    = "payment.failed"
	EventPaymentRefunded  = "payment.refunded"
)

// Event is the callback payload.
type Event struct {
	ID   string    `json:"id"`
	Type string    `json:"type"`
	Data EventData `json:"data"`
}

type EventData struct {
	OrderID   string  `json:"order_id"`
	Reference *string `json:"reference,omitempty"`
}

// PaymentStatus maps the event type onto the order payment status.
func (e Event) PaymentStatus() (enums.PaymentStatus, error) {
	switch strings.TrimSpace(e.Type) {
	case EventPaymentSucceeded:
		return enums.PaymentStatusPaid, nil
	case EventPaymentFailed:
		return enums.PaymentStatusFailed, nil
	case EventPaymentRefunded:
		return enums.PaymentStatusRefunded, nil
	}
	return "", pkgerrors.New(pkgerrors.CodeValidation, "unsupported payment event type").
		WithDetails(map[string]any{"type": e.Type})
}

// OrderID parses the order the event refers to.
func (e Event) OrderID() (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(e.Data.OrderID))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id in payment event")
	}
	return id, nil
}
