package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// OrderCreatedEvent is emitted once an order commits.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	OrderNumber   string              `json:"order_number"`
	UserID        *uuid.UUID          `json:"user_id,omitempty"`
	TotalCents    int64               `json:"total_cents"`
	Currency      string              `json:"currency"`
	CouponCode    *string             `json:"coupon_code,omitempty"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	ItemCount     int                 `json:"item_count"`
}

// OrderStatusChangedEvent records a fulfillment transition.
type OrderStatusChangedEvent struct {
	OrderID     uuid.UUID         `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	From        enums.OrderStatus `json:"from"`
	To          enums.OrderStatus `json:"to"`
}

// OrderCancelledEvent is emitted whenever an order is cancelled.
type OrderCancelledEvent struct {
	OrderID        uuid.UUID         `json:"order_id"`
	OrderNumber    string            `json:"order_number"`
	PreviousStatus enums.OrderStatus `json:"previous_status"`
	CouponReleased bool              `json:"coupon_released"`
	Reason         string            `json:"reason,omitempty"`
	CancelledAt    time.Time         `json:"cancelled_at"`
}

// OrderPaymentUpdatedEvent records a payment status transition.
type OrderPaymentUpdatedEvent struct {
	OrderID     uuid.UUID           `json:"order_id"`
	OrderNumber string              `json:"order_number"`
	From        enums.PaymentStatus `json:"from"`
	To          enums.PaymentStatus `json:"to"`
	Reference   *string             `json:"reference,omitempty"`
}

// LowStockEvent tells the notification service a product needs attention.
type LowStockEvent struct {
	ProductID uuid.UUID `json:"product_id"`
	SKU       string    `json:"sku"`
	Stock     int       `json:"stock"`
	Threshold int       `json:"threshold"`
}

// CartMergedEvent records a guest cart folded into a user cart at login.
type CartMergedEvent struct {
	CartID      uuid.UUID `json:"cart_id"`
	UserID      uuid.UUID `json:"user_id"`
	SessionID   string    `json:"session_id"`
	MergedLines int       `json:"merged_lines"`
	Skipped     int       `json:"skipped"`
}
