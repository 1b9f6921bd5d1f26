package paymentwebhook

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/idempotency"
)

type stubApplier struct {
	input orders.PaymentResultInput
	err   error
}

func (s *stubApplier) ApplyPaymentResult(_ context.Context, input orders.PaymentResultInput) (*models.Order, error) {
	s.input = input
	if s.err != nil {
		return nil, s.err
	}
	return &models.Order{ID: input.OrderID, PaymentStatus: input.Status}, nil
}

func TestHandleEventMapsTypes(t *testing.T) {
	cases := map[string]enums.PaymentStatus{
		EventPaymentSucceeded: enums.PaymentStatusPaid,
		EventPaymentFailed:    enums.PaymentStatusFailed,
		EventPaymentRefunded:  enums.PaymentStatusRefunded,
	}
	for eventType, want := range cases {
		applier := &stubApplier{}
		svc, err := NewService(applier, nil)
		if err != nil {
			t.Fatalf("new service: %v", err)
		}
		ref := "pi_123"
		orderID := uuid.New()
		err = svc.HandleEvent(context.Background(), &Event{
			ID:   "evt_1",
			Type: eventType,
			Data: EventData{OrderID: orderID.String(), Reference: &ref},
		})
		if err != nil {
			t.Fatalf("%s: unexpected error %v", eventType, err)
		}
		if applier.input.Status != want || applier.input.OrderID != orderID {
			t.Fatalf("%s: unexpected input %+v", eventType, applier.input)
		}
		if applier.input.Reference == nil || *applier.input.Reference != ref {
			t.Fatalf("%s: reference not forwarded", eventType)
		}
		if applier.input.Actor == nil || applier.input.Actor.Role != actorRole {
			t.Fatalf("%s: expected provider actor", eventType)
		}
	}
}

func TestHandleEventRejectsBadPayloads(t *testing.T) {
	svc, _ := NewService(&stubApplier{}, nil)

	err := svc.HandleEvent(context.Background(), &Event{ID: "evt", Type: "payment.exploded", Data: EventData{OrderID: uuid.NewString()}})
	if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for unknown type, got %v", err)
	}

	err = svc.HandleEvent(context.Background(), &Event{ID: "evt", Type: EventPaymentSucceeded, Data: EventData{OrderID: "nope"}})
	if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for bad order id, got %v", err)
	}

	if err := svc.HandleEvent(context.Background(), nil); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for nil event, got %v", err)
	}
}

func TestNewServiceRequiresOrders(t *testing.T) {
	if _, err := NewService(nil, nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestValidSignature(t *testing.T) {
	body := []byte(`{"id":"evt_1"}`)
	sig := Sign(body, "whsec")

	if !ValidSignature(body, "whsec", sig) {
		t.Fatal("expected signature to validate")
	}
	if !ValidSignature(body, "whsec", "sha256="+sig) {
		t.Fatal("expected prefixed signature to validate")
	}
	if ValidSignature(body, "other", sig) {
		t.Fatal("wrong secret must not validate")
	}
	if ValidSignature([]byte(`{"id":"evt_2"}`), "whsec", sig) {
		t.Fatal("tampered body must not validate")
	}
	if ValidSignature(body, "", sig) {
		t.Fatal("empty secret must not validate")
	}
}

type memoryStore struct {
	data map[string]string
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = "1"
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return scope + ":" + id
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func TestIdempotencyGuard(t *testing.T) {
	manager, err := idempotency.NewManager(&memoryStore{data: map[string]string{}}, time.Hour)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	guard, err := NewIdempotencyGuard(manager)
	if err != nil {
		t.Fatalf("guard: %v", err)
	}
	ctx := context.Background()

	seen, err := guard.CheckAndMark(ctx, "evt_1")
	if err != nil || seen {
		t.Fatalf("first delivery should be new: seen=%v err=%v", seen, err)
	}
	seen, _ = guard.CheckAndMark(ctx, "evt_1")
	if !seen {
		t.Fatal("second delivery should be a replay")
	}
	if err := guard.Delete(ctx, "evt_1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	seen, _ = guard.CheckAndMark(ctx, "evt_1")
	if seen {
		t.Fatal("deleted event should be processed again")
	}
}
