package product

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Service is the catalog collaborator consumed by cart and checkout.
type Service interface {
	GetProduct(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Product, error)
	GetProducts(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
	StoreConfig(ctx context.Context) (pricing.StoreConfig, error)
}

type service struct {
	loader Loader
	store  pricing.StoreConfig
}

// NewService wires the catalog service with storewide pricing settings taken
// from configuration.
func NewService(loader Loader, cfg config.StoreConfig) (Service, error) {
	if loader == nil {
		return nil, fmt.Errorf("product loader required")
	}
	rate, err := cfg.Rate()
	if err != nil {
		return nil, err
	}
	if cfg.ShippingFeeCents < 0 {
		return nil, fmt.Errorf("shipping fee must not be negative")
	}
	return &service{
		loader: loader,
		store: pricing.StoreConfig{
			TaxRate:                    rate,
			ShippingFeeCents:           cfg.ShippingFeeCents,
			FreeShippingThresholdCents: cfg.FreeShippingThresholdCents,
			Currency:                   cfg.Currency,
		},
	}, nil
}

func (s *service) GetProduct(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Product, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	p, err := s.loader.WithTx(tx).FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"product_id": id.String()})
		}
		return nil, db.Classify(err, "load product")
	}
	return p, nil
}

// GetProducts loads every id or fails with NOT_FOUND listing the missing ones.
func (s *service) GetProducts(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	rows, err := s.loader.WithTx(tx).FindByIDs(ctx, ids)
	if err != nil {
		return nil, db.Classify(err, "load products")
	}
	out := make(map[uuid.UUID]models.Product, len(rows))
	for _, row := range rows {
		out[row.ID] = row
	}
	var missing []string
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			missing = append(missing, id.String())
		}
	}
	if len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
			WithDetails(map[string]any{"product_ids": missing})
	}
	return out, nil
}

func (s *service) StoreConfig(context.Context) (pricing.StoreConfig, error) {
	return s.store, nil
}
