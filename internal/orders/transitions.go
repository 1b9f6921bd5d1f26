package orders

import (
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

var statusTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:    {enums.OrderStatusProcessing, enums.OrderStatusCancelled},
	enums.OrderStatusProcessing: {enums.OrderStatusShipped, enums.OrderStatusCancelled},
	enums.OrderStatusShipped:    {enums.OrderStatusDelivered},
}

var paymentTransitions = map[enums.PaymentStatus][]enums.PaymentStatus{
	enums.PaymentStatusPending: {enums.PaymentStatusPaid, enums.PaymentStatusFailed},
	enums.PaymentStatusPaid:    {enums.PaymentStatusRefunded},
}

// CanTransitionStatus reports whether the fulfillment state machine allows
// from -> to. Delivered and cancelled are terminal.
func CanTransitionStatus(from, to enums.OrderStatus) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CanTransitionPayment reports whether the payment state machine allows
// from -> to. Failed and refunded are terminal.
func CanTransitionPayment(from, to enums.PaymentStatus) bool {
	for _, next := range paymentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Cancellable reports whether an order in status may still be cancelled.
func Cancellable(status enums.OrderStatus) bool {
	return CanTransitionStatus(status, enums.OrderStatusCancelled)
}

func checkStatus(from, to enums.OrderStatus) error {
	if !to.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown order status").
			WithDetails(map[string]any{"status": to.String()})
	}
	if !CanTransitionStatus(from, to) {
		return pkgerrors.InvalidTransition("status", from.String(), to.String())
	}
	return nil
}

func checkPayment(from, to enums.PaymentStatus) error {
	if !to.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown payment status").
			WithDetails(map[string]any{"payment_status": to.String()})
	}
	if !CanTransitionPayment(from, to) {
		return pkgerrors.InvalidTransition("payment_status", from.String(), to.String())
	}
	return nil
}
