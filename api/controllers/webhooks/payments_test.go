package webhooks

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	paymentwebhook "github.com/angelmondragon/storefront-backend/internal/webhooks/payments"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const testSecret = "whsec_test"

type stubPaymentService struct {
	calls int
	err   error
	last  *paymentwebhook.Event
}

func (s *stubPaymentService) HandleEvent(_ context.Context, event *paymentwebhook.Event) error {
	s.calls++
	s.last = event
	return s.err
}

type stubGuard struct {
	seen    map[string]bool
	deleted []string
	err     error
}

func newStubGuard() *stubGuard {
	return &stubGuard{seen: map[string]bool{}}
}

func (g *stubGuard) CheckAndMark(_ context.Context, eventID string) (bool, error) {
	if g.err != nil {
		return false, g.err
	}
	if g.seen[eventID] {
		return true, nil
	}
	g.seen[eventID] = true
	return false, nil
}

func (g *stubGuard) Delete(_ context.Context, eventID string) error {
	delete(g.seen, eventID)
	g.deleted = append(g.deleted, eventID)
	return nil
}

const eventBody = `{"id":"evt_1","type":"payment.succeeded","data":{"order_id":"6f1c1c3e-9d1e-4c7a-9a55-0d5c6b1f1e11","reference":"pi_1"}}`

func signedRequest(body, signature string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payments", strings.NewReader(body))
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	return req
}

func TestPaymentWebhookProcessesSignedEvent(t *testing.T) {
	svc := &stubPaymentService{}
	handler := PaymentWebhook(svc, testSecret, newStubGuard(), nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, signedRequest(eventBody, paymentwebhook.Sign([]byte(eventBody), testSecret)))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.calls != 1 || svc.last.Type != paymentwebhook.EventPaymentSucceeded {
		t.Fatalf("unexpected handling calls=%d last=%+v", svc.calls, svc.last)
	}
}

func TestPaymentWebhookRejectsBadSignature(t *testing.T) {
	svc := &stubPaymentService{}
	handler := PaymentWebhook(svc, testSecret, newStubGuard(), nil)

	for _, sig := range []string{"", "deadbeef", paymentwebhook.Sign([]byte(eventBody), "wrong")} {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, signedRequest(eventBody, sig))
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("signature %q: expected 401 got %d", sig, resp.Code)
		}
	}
	if svc.calls != 0 {
		t.Fatalf("service must not run for unsigned callbacks")
	}
}

func TestPaymentWebhookAcknowledgesReplay(t *testing.T) {
	svc := &stubPaymentService{}
	handler := PaymentWebhook(svc, testSecret, newStubGuard(), nil)
	sig := paymentwebhook.Sign([]byte(eventBody), testSecret)

	for i := 0; i < 2; i++ {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, signedRequest(eventBody, sig))
		if resp.Code != http.StatusOK {
			t.Fatalf("delivery %d: expected 200 got %d", i, resp.Code)
		}
	}
	if svc.calls != 1 {
		t.Fatalf("expected a single application, got %d", svc.calls)
	}
}

func TestPaymentWebhookForgetsFailedEvent(t *testing.T) {
	svc := &stubPaymentService{err: pkgerrors.New(pkgerrors.CodeStorageConflict, "retry")}
	guard := newStubGuard()
	handler := PaymentWebhook(svc, testSecret, guard, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, signedRequest(eventBody, paymentwebhook.Sign([]byte(eventBody), testSecret)))

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	if len(guard.deleted) != 1 || guard.deleted[0] != "evt_1" {
		t.Fatalf("failed event should be released for retry, deleted=%v", guard.deleted)
	}
}

func TestPaymentWebhookGuardFailure(t *testing.T) {
	guard := newStubGuard()
	guard.err = errors.New("redis down")
	handler := PaymentWebhook(&stubPaymentService{}, testSecret, guard, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, signedRequest(eventBody, paymentwebhook.Sign([]byte(eventBody), testSecret)))
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}

func TestPaymentWebhookRequiresEventID(t *testing.T) {
	body := `{"type":"payment.succeeded","data":{"order_id":"x"}}`
	handler := PaymentWebhook(&stubPaymentService{}, testSecret, newStubGuard(), nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, signedRequest(body, paymentwebhook.Sign([]byte(body), testSecret)))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
