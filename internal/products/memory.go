package product

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// StockReader is the read side of an in-memory stock store, shared so that
// catalog reads observe reservations made by the inventory service.
type StockReader interface {
	FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// MemoryLoader adapts a StockReader to Loader.
type MemoryLoader struct {
	Source StockReader
}

func (m MemoryLoader) WithTx(*gorm.DB) Loader {
	return m
}

func (m MemoryLoader) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return m.Source.FindProduct(ctx, id)
}

func (m MemoryLoader) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	out := make([]models.Product, 0, len(ids))
	for _, id := range ids {
		p, err := m.Source.FindProduct(ctx, id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, nil
}
