package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// stockFloorPredicate mirrors the products CHECK: untracked products have no
// floor.
const stockFloorPredicate = "(NOT track_quantity OR stock - ? >= CASE WHEN allow_backorder THEN -backorder_limit ELSE 0 END)"

type repository struct {
	db *gorm.DB
}

// NewRepository builds the SQL Store.
func NewRepository(db *gorm.DB) Store {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Store {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) Decrement(ctx context.Context, productID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Where(stockFloorPredicate, qty).
		UpdateColumns(map[string]any{
			"stock":      gorm.Expr("stock - ?", qty),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) Increment(ctx context.Context, productID uuid.UUID, qty int) error {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		UpdateColumns(map[string]any{
			"stock":      gorm.Expr("stock + ?", qty),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) RecordMovement(ctx context.Context, movement *models.InventoryMovement) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(movement)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ListMovements(ctx context.Context, orderID uuid.UUID, reason enums.InventoryReason) ([]models.InventoryMovement, error) {
	var rows []models.InventoryMovement
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND reason = ?", orderID, reason).
		Order("product_id ASC").
		Find(&rows).Error
	return rows, err
}
