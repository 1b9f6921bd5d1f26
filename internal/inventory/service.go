package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Request asks for qty units of a product.
type Request struct {
	ProductID uuid.UUID
	Quantity  int
}

// Service reserves and restores stock. Reserve and Restock join the caller's
// transaction; AdjustStock opens its own.
type Service interface {
	Reserve(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, requests []Request) error
	Restock(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (int, error)
	AdjustStock(ctx context.Context, input AdjustInput) (*models.Product, error)
}

// AdjustInput is a manual stock correction outside any order.
type AdjustInput struct {
	ProductID uuid.UUID
	Delta     int
	Reason    enums.InventoryReason
	Note      *string
}

type service struct {
	store   Store
	tx      txRunner
	events  outbox.Emitter
	logg    *logger.Logger
	metrics *metrics.PipelineMetrics
}

// NewService wires the inventory service. events and pm are optional.
func NewService(store Store, tx txRunner, events outbox.Emitter, logg *logger.Logger, pm *metrics.PipelineMetrics) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("inventory store required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{store: store, tx: tx, events: events, logg: logg, metrics: pm}, nil
}

type decremented struct {
	productID uuid.UUID
	qty       int
}

// Reserve decrements stock for every request or for none. Quantities for the
// same product are combined and products are visited in id order so that
// concurrent batches lock rows in the same sequence. Every short product is
// reported, not only the first.
func (s *service) Reserve(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, requests []Request) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	batch, err := aggregate(requests)
	if err != nil {
		return err
	}
	store := s.store.WithTx(tx)

	var (
		done  []decremented
		short []string
	)
	for _, req := range batch {
		product, err := store.FindProduct(ctx, req.ProductID)
		if err != nil {
			s.compensate(ctx, store, done)
			s.metrics.IncReservation("error")
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
					WithDetails(map[string]any{"product_id": req.ProductID.String()})
			}
			return db.Classify(err, "load product for reservation")
		}
		if !product.TrackQuantity {
			continue
		}
		ok, err := store.Decrement(ctx, req.ProductID, req.Quantity)
		if err != nil {
			s.compensate(ctx, store, done)
			s.metrics.IncReservation("error")
			return db.Classify(err, "reserve stock")
		}
		if !ok {
			short = append(short, req.ProductID.String())
			continue
		}
		done = append(done, decremented{productID: req.ProductID, qty: req.Quantity})
	}

	if len(short) > 0 {
		s.compensate(ctx, store, done)
		s.metrics.IncReservation("out_of_stock")
		if s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"order_id":    orderID.String(),
				"product_ids": strings.Join(short, ","),
			})
			s.logg.Warn(logCtx, "inventory.reservation_rejected")
		}
		return pkgerrors.OutOfStock(short...)
	}

	for _, d := range done {
		oid := orderID
		inserted, err := store.RecordMovement(ctx, &models.InventoryMovement{
			OrderID:   &oid,
			ProductID: d.productID,
			Reason:    enums.InventoryReasonReservation,
			Delta:     -d.qty,
		})
		if err == nil && !inserted {
			err = pkgerrors.New(pkgerrors.CodeConflict, "stock already reserved for order")
		}
		if err != nil {
			s.compensate(ctx, store, done)
			s.metrics.IncReservation("error")
			return db.Classify(err, "record reservation")
		}
	}

	s.metrics.IncReservation("reserved")
	for _, d := range done {
		if err := s.signalLowStock(ctx, tx, store, d.productID); err != nil {
			return err
		}
	}
	return nil
}

// Restock reverses the reservation movements recorded for orderID. Each line
// is restored at most once: the restock movement is written before the stock
// is incremented and a second call finds it already present.
func (s *service) Restock(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (int, error) {
	if orderID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	store := s.store.WithTx(tx)
	reserved, err := store.ListMovements(ctx, orderID, enums.InventoryReasonReservation)
	if err != nil {
		return 0, db.Classify(err, "load reservation movements")
	}

	restored := 0
	for _, mv := range reserved {
		qty := -mv.Delta
		if qty <= 0 {
			continue
		}
		oid := orderID
		inserted, err := store.RecordMovement(ctx, &models.InventoryMovement{
			OrderID:   &oid,
			ProductID: mv.ProductID,
			Reason:    enums.InventoryReasonRestock,
			Delta:     qty,
		})
		if err != nil {
			return restored, db.Classify(err, "record restock")
		}
		if !inserted {
			continue
		}
		if err := store.Increment(ctx, mv.ProductID, qty); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				if s.logg != nil {
					s.logg.Warn(s.logg.WithField(ctx, "product_id", mv.ProductID.String()), "inventory.restock_product_missing")
				}
				continue
			}
			return restored, db.Classify(err, "restock")
		}
		restored++
	}
	if restored > 0 {
		s.metrics.IncRestock()
		if s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{"order_id": orderID.String(), "lines": restored})
			s.logg.Info(logCtx, "inventory.restocked")
		}
	}
	return restored, nil
}

// AdjustStock applies a manual correction through the same conditional
// primitive used by reservations, so a negative delta never breaks a tracked
// product's floor.
func (s *service) AdjustStock(ctx context.Context, input AdjustInput) (*models.Product, error) {
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.Delta == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delta must not be zero")
	}
	if !input.Reason.IsValid() || input.Reason.OrderLinked() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid adjustment reason").
			WithDetails(map[string]any{"reason": input.Reason.String()})
	}

	var updated *models.Product
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		store := s.store.WithTx(tx)
		if _, err := store.FindProduct(ctx, input.ProductID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return db.Classify(err, "load product")
		}

		if input.Delta < 0 {
			ok, err := store.Decrement(ctx, input.ProductID, -input.Delta)
			if err != nil {
				return db.Classify(err, "adjust stock")
			}
			if !ok {
				return pkgerrors.OutOfStock(input.ProductID.String())
			}
		} else if err := store.Increment(ctx, input.ProductID, input.Delta); err != nil {
			return db.Classify(err, "adjust stock")
		}

		if _, err := store.RecordMovement(ctx, &models.InventoryMovement{
			ProductID: input.ProductID,
			Reason:    input.Reason,
			Delta:     input.Delta,
			Note:      input.Note,
		}); err != nil {
			return db.Classify(err, "record adjustment")
		}

		product, err := store.FindProduct(ctx, input.ProductID)
		if err != nil {
			return db.Classify(err, "reload product")
		}
		updated = product
		return s.emitLowStock(ctx, tx, product)
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"product_id": input.ProductID.String(),
			"delta":      input.Delta,
			"reason":     input.Reason.String(),
			"stock":      updated.Stock,
		})
		s.logg.Info(logCtx, "inventory.adjusted")
	}
	return updated, nil
}

func (s *service) compensate(ctx context.Context, store Store, done []decremented) {
	for _, d := range done {
		if err := store.Increment(ctx, d.productID, d.qty); err != nil && s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"product_id": d.productID.String(),
				"qty":        d.qty,
			})
			s.logg.Error(logCtx, "inventory.compensation_failed", err)
		}
	}
}

func (s *service) signalLowStock(ctx context.Context, tx *gorm.DB, store Store, productID uuid.UUID) error {
	product, err := store.FindProduct(ctx, productID)
	if err != nil {
		return db.Classify(err, "reload product")
	}
	return s.emitLowStock(ctx, tx, product)
}

func (s *service) emitLowStock(ctx context.Context, tx *gorm.DB, product *models.Product) error {
	if !IsLowStock(product) {
		return nil
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"product_id": product.ID.String(),
			"sku":        product.SKU,
			"stock":      product.Stock,
			"threshold":  product.LowStockThreshold,
		})
		s.logg.Warn(logCtx, "inventory.low_stock")
	}
	if s.events == nil {
		return nil
	}
	return s.events.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventInventoryLowStock,
		AggregateType: enums.AggregateProduct,
		AggregateID:   product.ID,
		Data: payloads.LowStockEvent{
			ProductID: product.ID,
			SKU:       product.SKU,
			Stock:     product.Stock,
			Threshold: product.LowStockThreshold,
		},
	})
}

// IsLowStock reports whether a tracked product sits at or below its threshold.
func IsLowStock(p *models.Product) bool {
	return p != nil && p.TrackQuantity && p.LowStockThreshold > 0 && p.Stock <= p.LowStockThreshold
}

func aggregate(requests []Request) ([]Request, error) {
	if len(requests) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}
	totals := make(map[uuid.UUID]int, len(requests))
	for _, req := range requests {
		if req.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
		}
		if req.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
				WithDetails(map[string]any{"product_id": req.ProductID.String()})
		}
		totals[req.ProductID] += req.Quantity
	}
	out := make([]Request, 0, len(totals))
	for id, qty := range totals {
		out = append(out, Request{ProductID: id, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ProductID.String() < out[j].ProductID.String()
	})
	return out, nil
}
