package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// InventoryMovement is the audited stock ledger. Order-linked rows are unique
// per (order, product, reason) which makes restock idempotent per order.
type InventoryMovement struct {
	ID        uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   *uuid.UUID            `gorm:"column:order_id;type:uuid;uniqueIndex:ux_inventory_movements_order_product_reason"`
	ProductID uuid.UUID             `gorm:"column:product_id;type:uuid;not null;index:idx_inventory_movements_product;uniqueIndex:ux_inventory_movements_order_product_reason"`
	Reason    enums.InventoryReason `gorm:"column:reason;type:text;not null;uniqueIndex:ux_inventory_movements_order_product_reason"`
	Delta     int                   `gorm:"column:delta;not null"`
	Note      *string               `gorm:"column:note"`
	CreatedAt time.Time             `gorm:"column:created_at;autoCreateTime"`
}

func (m *InventoryMovement) BeforeCreate(*gorm.DB) error {
	ensureID(&m.ID)
	return nil
}
