package coupons

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// MemoryRepository is an in-process Repository with the same conditional
// update semantics as the SQL implementation.
type MemoryRepository struct {
	mu     sync.Mutex
	byID   map[uuid.UUID]*models.Coupon
	byCode map[string]uuid.UUID
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:   map[uuid.UUID]*models.Coupon{},
		byCode: map[string]uuid.UUID{},
	}
}

func (m *MemoryRepository) WithTx(*gorm.DB) Repository {
	return m
}

func (m *MemoryRepository) Create(_ context.Context, coupon *models.Coupon) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byCode[coupon.Code]; exists {
		return gorm.ErrDuplicatedKey
	}
	if coupon.ID == uuid.Nil {
		coupon.ID = uuid.New()
	}
	stored := *coupon
	m.byID[stored.ID] = &stored
	m.byCode[stored.Code] = stored.ID
	return nil
}

func (m *MemoryRepository) FindByCode(_ context.Context, code string) (*models.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byCode[code]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *m.byID[id]
	return &copied, nil
}

func (m *MemoryRepository) FindByID(_ context.Context, id uuid.UUID) (*models.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	coupon, ok := m.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *coupon
	return &copied, nil
}

func (m *MemoryRepository) IncrementUsage(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	coupon, ok := m.byID[id]
	if !ok {
		return false, nil
	}
	if coupon.UsageLimit != nil && coupon.UsageCount >= *coupon.UsageLimit {
		return false, nil
	}
	coupon.UsageCount++
	return true, nil
}

func (m *MemoryRepository) DecrementUsage(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	coupon, ok := m.byID[id]
	if !ok || coupon.UsageCount <= 0 {
		return false, nil
	}
	coupon.UsageCount--
	return true, nil
}

// Delete removes a coupon; used to exercise rollback against deleted coupons.
func (m *MemoryRepository) Delete(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if coupon, ok := m.byID[id]; ok {
		delete(m.byCode, coupon.Code)
		delete(m.byID, id)
	}
}
