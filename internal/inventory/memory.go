package inventory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

type movementKey struct {
	orderID   uuid.UUID
	productID uuid.UUID
	reason    enums.InventoryReason
}

// MemoryStore is an in-process Store with the same conditional semantics as
// the SQL repository.
type MemoryStore struct {
	mu        sync.Mutex
	products  map[uuid.UUID]*models.Product
	movements []models.InventoryMovement
	linked    map[movementKey]struct{}
}

func NewMemoryStore(products ...models.Product) *MemoryStore {
	m := &MemoryStore{
		products: map[uuid.UUID]*models.Product{},
		linked:   map[movementKey]struct{}{},
	}
	for _, p := range products {
		m.Put(p)
	}
	return m
}

// Put inserts or replaces a product.
func (m *MemoryStore) Put(p models.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	stored := p
	m.products[p.ID] = &stored
}

// Stock returns the current stock for id, or 0 if unknown.
func (m *MemoryStore) Stock(id uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.products[id]; ok {
		return p.Stock
	}
	return 0
}

// Movements returns a copy of the ledger.
func (m *MemoryStore) Movements() []models.InventoryMovement {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.InventoryMovement(nil), m.movements...)
}

func (m *MemoryStore) WithTx(*gorm.DB) Store {
	return m
}

func (m *MemoryStore) FindProduct(_ context.Context, id uuid.UUID) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *p
	return &copied, nil
}

func (m *MemoryStore) Decrement(_ context.Context, productID uuid.UUID, qty int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return false, nil
	}
	if p.TrackQuantity && p.Stock-qty < p.StockFloor() {
		return false, nil
	}
	p.Stock -= qty
	return true, nil
}

func (m *MemoryStore) Increment(_ context.Context, productID uuid.UUID, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	p.Stock += qty
	return nil
}

func (m *MemoryStore) RecordMovement(_ context.Context, movement *models.InventoryMovement) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if movement.OrderID != nil {
		key := movementKey{orderID: *movement.OrderID, productID: movement.ProductID, reason: movement.Reason}
		if _, exists := m.linked[key]; exists {
			return false, nil
		}
		m.linked[key] = struct{}{}
	}
	if movement.ID == uuid.Nil {
		movement.ID = uuid.New()
	}
	m.movements = append(m.movements, *movement)
	return true, nil
}

func (m *MemoryStore) ListMovements(_ context.Context, orderID uuid.UUID, reason enums.InventoryReason) ([]models.InventoryMovement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.InventoryMovement
	for _, mv := range m.movements {
		if mv.OrderID != nil && *mv.OrderID == orderID && mv.Reason == reason {
			out = append(out, mv)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ProductID.String() < out[j].ProductID.String()
	})
	return out, nil
}
