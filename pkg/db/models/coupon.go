package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Coupon is a storewide discount code. Value is a percentage for percentage
// coupons and minor units for fixed coupons.
type Coupon struct {
	ID                  uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Code                string           `gorm:"column:code;uniqueIndex:ux_coupons_code;not null"`
	Type                enums.CouponType `gorm:"column:type;type:text;not null"`
	Value               decimal.Decimal  `gorm:"column:value;type:numeric(12,2);not null"`
	MinOrderAmountCents *int64           `gorm:"column:min_order_amount_cents"`
	MaxDiscountCents    *int64           `gorm:"column:max_discount_cents"`
	UsageLimit          *int             `gorm:"column:usage_limit"`
	UsageCount          int              `gorm:"column:usage_count;not null;default:0"`
	StartsAt            *time.Time       `gorm:"column:starts_at"`
	ExpiresAt           *time.Time       `gorm:"column:expires_at"`
	IsActive            bool             `gorm:"column:is_active;not null"`
	CreatedAt           time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Coupon) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
