package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Product is the catalog row. This service only writes the stock column.
type Product struct {
	ID                  uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	SKU                 string             `gorm:"column:sku;uniqueIndex;not null"`
	Name                string             `gorm:"column:name;not null"`
	IsActive            bool               `gorm:"column:is_active;not null"`
	PriceCents          int64              `gorm:"column:price_cents;not null"`
	CompareAtPriceCents *int64             `gorm:"column:compare_at_price_cents"`
	DiscountType        enums.DiscountType `gorm:"column:discount_type;type:text;not null;default:'none'"`
	DiscountValue       decimal.Decimal    `gorm:"column:discount_value;type:numeric(12,2);not null;default:0"`
	DiscountStartsAt    *time.Time         `gorm:"column:discount_starts_at"`
	DiscountEndsAt      *time.Time         `gorm:"column:discount_ends_at"`
	Stock               int                `gorm:"column:stock;not null;default:0"`
	TrackQuantity       bool               `gorm:"column:track_quantity;not null"`
	AllowBackorder      bool               `gorm:"column:allow_backorder;not null;default:false"`
	BackorderLimit      int                `gorm:"column:backorder_limit;not null;default:0"`
	LowStockThreshold   int                `gorm:"column:low_stock_threshold;not null;default:0"`
	CreatedAt           time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// StockFloor is the lowest stock value the product may reach.
func (p Product) StockFloor() int {
	if p.AllowBackorder && p.BackorderLimit > 0 {
		return -p.BackorderLimit
	}
	return 0
}
