package orderdto

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Order is the public order representation. Amounts are integer cents.
type Order struct {
	ID               uuid.UUID     `json:"id"`
	OrderNumber      string        `json:"order_number"`
	Status           string        `json:"status"`
	PaymentStatus    string        `json:"payment_status"`
	PaymentMethod    string        `json:"payment_method"`
	PaymentReference *string       `json:"payment_reference,omitempty"`
	CouponCode       *string       `json:"coupon_code,omitempty"`
	Currency         string        `json:"currency"`
	SubtotalCents    int64         `json:"subtotal_cents"`
	DiscountCents    int64         `json:"discount_cents"`
	TaxCents         int64         `json:"tax_cents"`
	ShippingCents    int64         `json:"shipping_cents"`
	TotalCents       int64         `json:"total_cents"`
	ShippingAddress  types.Address `json:"shipping_address"`
	BillingAddress   types.Address `json:"billing_address"`
	Items            []OrderItem   `json:"items"`
	PaidAt           *time.Time    `json:"paid_at,omitempty"`
	ShippedAt        *time.Time    `json:"shipped_at,omitempty"`
	DeliveredAt      *time.Time    `json:"delivered_at,omitempty"`
	CancelledAt      *time.Time    `json:"cancelled_at,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

type OrderItem struct {
	ProductID      uuid.UUID `json:"product_id"`
	VariantID      string    `json:"variant_id,omitempty"`
	SKU            string    `json:"sku"`
	Name           string    `json:"name"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	LineTotalCents int64     `json:"line_total_cents"`
}

// OrderPage is one page of order history.
type OrderPage struct {
	Orders     []Order `json:"orders"`
	NextCursor string  `json:"next_cursor,omitempty"`
}

// CancelRequest carries an optional cancellation reason.
type CancelRequest struct {
	Reason string `json:"reason,omitempty" validate:"max=500"`
}

// FromModel maps a stored order onto its public shape.
func FromModel(order *models.Order) Order {
	if order == nil {
		return Order{Items: []OrderItem{}}
	}
	items := make([]OrderItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderItem{
			ProductID:      item.ProductID,
			VariantID:      item.VariantID,
			SKU:            item.SKU,
			Name:           item.Name,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			LineTotalCents: item.LineTotalCents,
		})
	}
	return Order{
		ID:               order.ID,
		OrderNumber:      order.OrderNumber,
		Status:           string(order.Status),
		PaymentStatus:    string(order.PaymentStatus),
		PaymentMethod:    string(order.PaymentMethod),
		PaymentReference: order.PaymentReference,
		CouponCode:       order.CouponCode,
		Currency:         order.Currency,
		SubtotalCents:    order.SubtotalCents,
		DiscountCents:    order.DiscountCents,
		TaxCents:         order.TaxCents,
		ShippingCents:    order.ShippingCents,
		TotalCents:       order.TotalCents,
		ShippingAddress:  order.ShippingAddress,
		BillingAddress:   order.BillingAddress,
		Items:            items,
		PaidAt:           order.PaidAt,
		ShippedAt:        order.ShippedAt,
		DeliveredAt:      order.DeliveredAt,
		CancelledAt:      order.CancelledAt,
		CreatedAt:        order.CreatedAt,
		UpdatedAt:        order.UpdatedAt,
	}
}
