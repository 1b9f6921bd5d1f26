package inventory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

type stubTx struct{}

func (stubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func trackedProduct(stock int) models.Product {
	return models.Product{ID: uuid.New(), SKU: "SKU-" + uuid.NewString()[:8], Name: "Widget", IsActive: true, PriceCents: 1000, Stock: stock, TrackQuantity: true}
}

func newMemoryService(t *testing.T, products ...models.Product) (Service, *MemoryStore, *outbox.Recorder) {
	t.Helper()
	store := NewMemoryStore(products...)
	rec := outbox.NewRecorder()
	svc, err := NewService(store, stubTx{}, rec, nil, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, store, rec
}

func TestNewServiceRequiresDeps(t *testing.T) {
	if _, err := NewService(nil, stubTx{}, nil, nil, nil); err == nil {
		t.Fatal("expected error for nil store")
	}
	if _, err := NewService(NewMemoryStore(), nil, nil, nil, nil); err == nil {
		t.Fatal("expected error for nil tx runner")
	}
}

func TestReserveDecrementsAndRecordsMovements(t *testing.T) {
	ctx := context.Background()
	a, b := trackedProduct(5), trackedProduct(2)
	svc, store, _ := newMemoryService(t, a, b)
	orderID := uuid.New()

	err := svc.Reserve(ctx, nil, orderID, []Request{
		{ProductID: a.ID, Quantity: 2},
		{ProductID: b.ID, Quantity: 2},
		{ProductID: a.ID, Quantity: 1},
	})
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if got := store.Stock(a.ID); got != 2 {
		t.Fatalf("expected stock 2 for a, got %d", got)
	}
	if got := store.Stock(b.ID); got != 0 {
		t.Fatalf("expected stock 0 for b, got %d", got)
	}
	movements := store.Movements()
	if len(movements) != 2 {
		t.Fatalf("expected one movement per product, got %d", len(movements))
	}
	for _, mv := range movements {
		if mv.Reason != enums.InventoryReasonReservation || mv.OrderID == nil || *mv.OrderID != orderID {
			t.Fatalf("unexpected movement %+v", mv)
		}
	}
}

func TestReserveIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	plenty, scarce, empty := trackedProduct(10), trackedProduct(1), trackedProduct(0)
	svc, store, _ := newMemoryService(t, plenty, scarce, empty)

	err := svc.Reserve(ctx, nil, uuid.New(), []Request{
		{ProductID: plenty.ID, Quantity: 3},
		{ProductID: scarce.ID, Quantity: 2},
		{ProductID: empty.ID, Quantity: 1},
	})
	if !pkgerrors.Is(err, pkgerrors.CodeOutOfStock) {
		t.Fatalf("expected OUT_OF_STOCK, got %v", err)
	}
	short := pkgerrors.ShortProducts(err)
	if len(short) != 2 {
		t.Fatalf("expected both short products reported, got %v", short)
	}
	for _, p := range []models.Product{plenty, scarce, empty} {
		if got := store.Stock(p.ID); got != p.Stock {
			t.Fatalf("stock for %s changed from %d to %d", p.SKU, p.Stock, got)
		}
	}
	if len(store.Movements()) != 0 {
		t.Fatal("expected no movements after a rejected batch")
	}
}

func TestReserveRespectsBackorderFloor(t *testing.T) {
	ctx := context.Background()
	p := trackedProduct(1)
	p.AllowBackorder = true
	p.BackorderLimit = 3
	svc, store, _ := newMemoryService(t, p)

	if err := svc.Reserve(ctx, nil, uuid.New(), []Request{{ProductID: p.ID, Quantity: 4}}); err != nil {
		t.Fatalf("expected backorder within limit to succeed: %v", err)
	}
	if got := store.Stock(p.ID); got != -3 {
		t.Fatalf("expected stock -3, got %d", got)
	}
	err := svc.Reserve(ctx, nil, uuid.New(), []Request{{ProductID: p.ID, Quantity: 1}})
	if !pkgerrors.Is(err, pkgerrors.CodeOutOfStock) {
		t.Fatalf("expected floor to hold, got %v", err)
	}
}

func TestReserveSkipsUntrackedProducts(t *testing.T) {
	ctx := context.Background()
	p := trackedProduct(0)
	p.TrackQuantity = false
	svc, store, _ := newMemoryService(t, p)

	orderID := uuid.New()
	if err := svc.Reserve(ctx, nil, orderID, []Request{{ProductID: p.ID, Quantity: 50}}); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if got := store.Stock(p.ID); got != 0 {
		t.Fatalf("untracked stock should not move, got %d", got)
	}
	restored, err := svc.Restock(ctx, nil, orderID)
	if err != nil || restored != 0 {
		t.Fatalf("expected nothing to restock, got %d %v", restored, err)
	}
}

func TestReserveValidatesInput(t *testing.T) {
	ctx := context.Background()
	p := trackedProduct(5)
	svc, _, _ := newMemoryService(t, p)

	cases := map[string]struct {
		orderID  uuid.UUID
		requests []Request
		code     pkgerrors.Code
	}{
		"missing order":   {orderID: uuid.Nil, requests: []Request{{ProductID: p.ID, Quantity: 1}}, code: pkgerrors.CodeValidation},
		"empty batch":     {orderID: uuid.New(), code: pkgerrors.CodeValidation},
		"zero quantity":   {orderID: uuid.New(), requests: []Request{{ProductID: p.ID}}, code: pkgerrors.CodeValidation},
		"unknown product": {orderID: uuid.New(), requests: []Request{{ProductID: uuid.New(), Quantity: 1}}, code: pkgerrors.CodeNotFound},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			err := svc.Reserve(ctx, nil, tc.orderID, tc.requests)
			if !pkgerrors.Is(err, tc.code) {
				t.Fatalf("expected %s, got %v", tc.code, err)
			}
		})
	}
}

func TestConcurrentReservationsNeverOversell(t *testing.T) {
	ctx := context.Background()
	p := trackedProduct(5)
	svc, store, _ := newMemoryService(t, p)

	var (
		wg      sync.WaitGroup
		success int32
	)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := svc.Reserve(ctx, nil, uuid.New(), []Request{{ProductID: p.ID, Quantity: 1}}); err == nil {
				atomic.AddInt32(&success, 1)
			}
		}()
	}
	wg.Wait()

	if success != 5 {
		t.Fatalf("expected exactly 5 reservations, got %d", success)
	}
	if got := store.Stock(p.ID); got != 0 {
		t.Fatalf("expected stock 0, got %d", got)
	}
}

func TestRestockIsIdempotentPerOrder(t *testing.T) {
	ctx := context.Background()
	a, b := trackedProduct(4), trackedProduct(6)
	svc, store, _ := newMemoryService(t, a, b)
	orderID := uuid.New()

	if err := svc.Reserve(ctx, nil, orderID, []Request{{ProductID: a.ID, Quantity: 3}, {ProductID: b.ID, Quantity: 1}}); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	restored, err := svc.Restock(ctx, nil, orderID)
	if err != nil || restored != 2 {
		t.Fatalf("expected 2 lines restored, got %d %v", restored, err)
	}
	again, err := svc.Restock(ctx, nil, orderID)
	if err != nil || again != 0 {
		t.Fatalf("expected second restock to be a no-op, got %d %v", again, err)
	}
	if store.Stock(a.ID) != 4 || store.Stock(b.ID) != 6 {
		t.Fatalf("expected original stock, got a=%d b=%d", store.Stock(a.ID), store.Stock(b.ID))
	}
}

func TestAdjustStock(t *testing.T) {
	ctx := context.Background()
	p := trackedProduct(3)
	p.LowStockThreshold = 2
	svc, store, rec := newMemoryService(t, p)

	updated, err := svc.AdjustStock(ctx, AdjustInput{ProductID: p.ID, Delta: 7, Reason: enums.InventoryReasonRestock})
	if !pkgerrors.Is(err, pkgerrors.CodeValidation) || updated != nil {
		t.Fatalf("expected order-linked reason to be rejected, got %v", err)
	}

	updated, err = svc.AdjustStock(ctx, AdjustInput{ProductID: p.ID, Delta: -2, Reason: enums.InventoryReasonDamage})
	if err != nil {
		t.Fatalf("AdjustStock: %v", err)
	}
	if updated.Stock != 1 || store.Stock(p.ID) != 1 {
		t.Fatalf("expected stock 1, got %d", updated.Stock)
	}

	_, err = svc.AdjustStock(ctx, AdjustInput{ProductID: p.ID, Delta: -2, Reason: enums.InventoryReasonCorrection})
	if !pkgerrors.Is(err, pkgerrors.CodeOutOfStock) {
		t.Fatalf("expected floor violation, got %v", err)
	}
	if store.Stock(p.ID) != 1 {
		t.Fatalf("failed adjustment must not change stock")
	}

	events := rec.Events()
	if len(events) != 1 || events[0].EventType != enums.EventInventoryLowStock {
		t.Fatalf("expected one low stock event, got %+v", events)
	}
	payload, ok := events[0].Data.(payloads.LowStockEvent)
	if !ok || payload.Stock != 1 || payload.Threshold != 2 {
		t.Fatalf("unexpected low stock payload %+v", events[0].Data)
	}
}

func TestAdjustStockOnUntrackedProduct(t *testing.T) {
	p := trackedProduct(0)
	p.TrackQuantity = false
	svc, store, rec := newMemoryService(t, p)

	updated, err := svc.AdjustStock(context.Background(), AdjustInput{ProductID: p.ID, Delta: -2, Reason: enums.InventoryReasonDamage})
	if err != nil {
		t.Fatalf("AdjustStock: %v", err)
	}
	if updated.Stock != -2 || store.Stock(p.ID) != -2 {
		t.Fatalf("expected stock -2, got %d", updated.Stock)
	}
	if len(rec.Events()) != 0 {
		t.Fatalf("untracked products never signal low stock")
	}
}

func TestIsLowStock(t *testing.T) {
	p := trackedProduct(5)
	if IsLowStock(&p) {
		t.Fatal("threshold 0 disables low stock signalling")
	}
	p.LowStockThreshold = 5
	if !IsLowStock(&p) {
		t.Fatal("expected stock at threshold to be low")
	}
	p.TrackQuantity = false
	if IsLowStock(&p) {
		t.Fatal("untracked products are never low")
	}
}
