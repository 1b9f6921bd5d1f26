package coupons

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// Repository persists coupons. IncrementUsage and DecrementUsage are the
// atomic conditional updates: they report false when the precondition
// (usage below limit, usage above zero) no longer holds.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, coupon *models.Coupon) error
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error)
	IncrementUsage(ctx context.Context, id uuid.UUID) (bool, error)
	DecrementUsage(ctx context.Context, id uuid.UUID) (bool, error)
}
