package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func seedProduct(t *testing.T, conn *gorm.DB, p models.Product) models.Product {
	t.Helper()
	require.NoError(t, conn.Create(&p).Error)
	return p
}

func stockOf(t *testing.T, conn *gorm.DB, id uuid.UUID) int {
	t.Helper()
	var p models.Product
	require.NoError(t, conn.First(&p, "id = ?", id).Error)
	return p.Stock
}

func TestRepositoryDecrementHonoursFloor(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.NewSQLite(t)
	repo := NewRepository(conn)

	plain := seedProduct(t, conn, trackedProduct(2))
	back := trackedProduct(0)
	back.AllowBackorder = true
	back.BackorderLimit = 2
	back = seedProduct(t, conn, back)

	ok, err := repo.Decrement(ctx, plain.ID, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Decrement(ctx, plain.ID, 1)
	require.NoError(t, err)
	assert.False(t, ok, "stock may not go negative without backorder")

	ok, err = repo.Decrement(ctx, back.ID, 2)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.Decrement(ctx, back.ID, 1)
	require.NoError(t, err)
	assert.False(t, ok, "backorder limit is a hard floor")

	assert.Equal(t, 0, stockOf(t, conn, plain.ID))
	assert.Equal(t, -2, stockOf(t, conn, back.ID))
}

func TestRepositoryDecrementIgnoresFloorForUntracked(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.NewSQLite(t)
	repo := NewRepository(conn)

	p := trackedProduct(0)
	p.TrackQuantity = false
	p = seedProduct(t, conn, p)

	ok, err := repo.Decrement(ctx, p.ID, 3)
	require.NoError(t, err)
	assert.True(t, ok, "untracked products have no stock floor")
	assert.Equal(t, -3, stockOf(t, conn, p.ID))
}

func TestRepositoryRecordMovementDedupesOrderLinkedRows(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.NewSQLite(t)
	repo := NewRepository(conn)
	p := seedProduct(t, conn, trackedProduct(5))
	orderID := uuid.New()

	inserted, err := repo.RecordMovement(ctx, &models.InventoryMovement{OrderID: &orderID, ProductID: p.ID, Reason: enums.InventoryReasonRestock, Delta: 1})
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = repo.RecordMovement(ctx, &models.InventoryMovement{OrderID: &orderID, ProductID: p.ID, Reason: enums.InventoryReasonRestock, Delta: 1})
	require.NoError(t, err)
	assert.False(t, inserted)

	for i := 0; i < 2; i++ {
		inserted, err = repo.RecordMovement(ctx, &models.InventoryMovement{ProductID: p.ID, Reason: enums.InventoryReasonAdjustment, Delta: 1})
		require.NoError(t, err)
		assert.True(t, inserted, "manual adjustments are never deduplicated")
	}
}

func TestServiceOnSQLiteRollsBackWithTransaction(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.NewSQLite(t)
	client := db.NewFromGorm(conn)
	svc, err := NewService(NewRepository(conn), client, nil, nil, nil)
	require.NoError(t, err)

	a := seedProduct(t, conn, trackedProduct(3))
	b := seedProduct(t, conn, trackedProduct(1))
	orderID := uuid.New()

	err = client.WithTx(ctx, func(tx *gorm.DB) error {
		return svc.Reserve(ctx, tx, orderID, []Request{{ProductID: a.ID, Quantity: 2}, {ProductID: b.ID, Quantity: 2}})
	})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeOutOfStock), "got %v", err)
	assert.Equal(t, 3, stockOf(t, conn, a.ID))
	assert.Equal(t, 1, stockOf(t, conn, b.ID))

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return svc.Reserve(ctx, tx, orderID, []Request{{ProductID: a.ID, Quantity: 2}, {ProductID: b.ID, Quantity: 1}})
	}))
	assert.Equal(t, 1, stockOf(t, conn, a.ID))
	assert.Equal(t, 0, stockOf(t, conn, b.ID))

	for i := 0; i < 2; i++ {
		require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
			_, err := svc.Restock(ctx, tx, orderID)
			return err
		}))
	}
	assert.Equal(t, 3, stockOf(t, conn, a.ID))
	assert.Equal(t, 1, stockOf(t, conn, b.ID))

	var count int64
	require.NoError(t, conn.Model(&models.InventoryMovement{}).Where("order_id = ?", orderID).Count(&count).Error)
	assert.Equal(t, int64(4), count)
}
