package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Order is immutable after creation except for the lifecycle columns.
type Order struct {
	ID                    uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber           string              `gorm:"column:order_number;uniqueIndex:ux_orders_order_number;not null"`
	UserID                *uuid.UUID          `gorm:"column:user_id;type:uuid;index"`
	SessionID             *string             `gorm:"column:session_id"`
	Status                enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'pending';index"`
	PaymentStatus         enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	PaymentMethod         enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	PaymentReference      *string             `gorm:"column:payment_reference"`
	ShippingAddress       types.Address       `gorm:"column:shipping_address;type:jsonb;not null"`
	BillingAddress        types.Address       `gorm:"column:billing_address;type:jsonb;not null"`
	CouponID              *uuid.UUID          `gorm:"column:coupon_id;type:uuid"`
	CouponCode            *string             `gorm:"column:coupon_code"`
	CouponRedeemedByOrder bool                `gorm:"column:coupon_redeemed_by_order;not null;default:false"`
	Currency              string              `gorm:"column:currency;not null;default:'USD'"`
	SubtotalCents         int64               `gorm:"column:subtotal_cents;not null"`
	DiscountCents         int64               `gorm:"column:discount_cents;not null;default:0"`
	TaxCents              int64               `gorm:"column:tax_cents;not null;default:0"`
	ShippingCents         int64               `gorm:"column:shipping_cents;not null;default:0"`
	TotalCents            int64               `gorm:"column:total_cents;not null"`
	Items                 []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	PaidAt                *time.Time          `gorm:"column:paid_at"`
	ShippedAt             *time.Time          `gorm:"column:shipped_at"`
	DeliveredAt           *time.Time          `gorm:"column:delivered_at"`
	CancelledAt           *time.Time          `gorm:"column:cancelled_at"`
	CreatedAt             time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	for i := range o.Items {
		o.Items[i].OrderID = o.ID
	}
	return nil
}

// OrderItem is a frozen snapshot of a purchased line.
type OrderItem struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID      uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	VariantID      string    `gorm:"column:variant_id;not null;default:''"`
	SKU            string    `gorm:"column:sku;not null"`
	Name           string    `gorm:"column:name;not null"`
	Quantity       int       `gorm:"column:quantity;not null"`
	UnitPriceCents int64     `gorm:"column:unit_price_cents;not null"`
	LineTotalCents int64     `gorm:"column:line_total_cents;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
