package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Store is the atomic stock primitive. Decrement checks the backorder floor
// and writes in one step and reports false when the check fails.
// RecordMovement reports false when an order-linked movement with the same
// (order, product, reason) already exists.
type Store interface {
	WithTx(tx *gorm.DB) Store
	FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	Decrement(ctx context.Context, productID uuid.UUID, qty int) (bool, error)
	Increment(ctx context.Context, productID uuid.UUID, qty int) error
	RecordMovement(ctx context.Context, movement *models.InventoryMovement) (bool, error)
	ListMovements(ctx context.Context, orderID uuid.UUID, reason enums.InventoryReason) ([]models.InventoryMovement, error)
}
