package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type fakeRateStore struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func newFakeRateStore() *fakeRateStore {
	return &fakeRateStore{counts: map[string]int64{}}
}

func (f *fakeRateStore) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	if f.err != nil {
		return false, 0, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[scope]++
	return f.counts[scope] <= limit, f.counts[scope], nil
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
}

func TestRateLimitBlocksAfterLimit(t *testing.T) {
	store := newFakeRateStore()
	handler := RateLimit(NewRateLimitPolicy("checkout", time.Minute, 2), store, nil)(okHandler())

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil)
		req = req.WithContext(WithSessionID(req.Context(), "guest-1"))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		wantRemaining := []string{"1", "0", "0"}[i]
		if got := rec.Header().Get("X-RateLimit-Remaining"); got != wantRemaining {
			t.Fatalf("request %d: expected remaining %s got %q", i, wantRemaining, got)
		}
		if i < 2 {
			if rec.Code != http.StatusOK {
				t.Fatalf("request %d: expected 200 got %d", i, rec.Code)
			}
			continue
		}
		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("expected 429 got %d", rec.Code)
		}
		if rec.Header().Get("Retry-After") != "60" {
			t.Fatalf("unexpected Retry-After %q", rec.Header().Get("Retry-After"))
		}
		var payload struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
			t.Fatalf("decode error: %v", err)
		}
		if payload.Error.Code != string(pkgerrors.CodeRateLimit) {
			t.Fatalf("unexpected code: %s", payload.Error.Code)
		}
	}
}

func TestRateLimitKeysByCaller(t *testing.T) {
	store := newFakeRateStore()
	handler := RateLimit(NewRateLimitPolicy("writes", time.Minute, 1), store, nil)(okHandler())

	userReq := httptest.NewRequest(http.MethodPost, "/", nil)
	userReq = userReq.WithContext(WithSessionID(WithUserID(userReq.Context(), "user-1"), "guest-1"))
	handler.ServeHTTP(httptest.NewRecorder(), userReq)

	guestReq := httptest.NewRequest(http.MethodPost, "/", nil)
	guestReq = guestReq.WithContext(WithSessionID(guestReq.Context(), "guest-1"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, guestReq)
	if rec.Code != http.StatusOK {
		t.Fatalf("guest session should have its own window, got %d", rec.Code)
	}

	ipReq := httptest.NewRequest(http.MethodPost, "/", nil)
	ipReq.Header.Set("X-Forwarded-For", "9.9.9.9, 10.0.0.1")
	handler.ServeHTTP(httptest.NewRecorder(), ipReq)

	if _, ok := store.counts["writes:user:user-1"]; !ok {
		t.Fatalf("expected user scope, got %v", store.counts)
	}
	if _, ok := store.counts["writes:session:guest-1"]; !ok {
		t.Fatalf("expected session scope, got %v", store.counts)
	}
	if _, ok := store.counts["writes:ip:9.9.9.9"]; !ok {
		t.Fatalf("expected ip scope, got %v", store.counts)
	}
}

func TestRateLimitStoreFailureIsDependencyError(t *testing.T) {
	store := newFakeRateStore()
	store.err = errors.New("redis down")
	handler := RateLimit(NewRateLimitPolicy("writes", time.Minute, 1), store, nil)(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", rec.Code)
	}
}

func TestRateLimitDisabledPolicyPassesThrough(t *testing.T) {
	handler := RateLimit(NewRateLimitPolicy("off", 0, 0), newFakeRateStore(), nil)(okHandler())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
}
