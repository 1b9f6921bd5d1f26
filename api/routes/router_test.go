package routes

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	cartsvc "github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error {
	return s.err
}

type stubCart struct {
	cartsvc.Service
	owner cartsvc.Owner
}

func (s *stubCart) Get(_ context.Context, owner cartsvc.Owner) (*models.Cart, error) {
	s.owner = owner
	return &models.Cart{ID: uuid.New()}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test"},
		JWT: config.JWTConfig{Secret: "router-secret", Issuer: "storefront"},
	}
}

func newTestRouter(cart cartsvc.Service) http.Handler {
	return NewRouter(testConfig(), nil, Deps{
		DB:   stubPinger{},
		Cart: cart,
	})
}

func adminToken(t *testing.T, role enums.UserRole) string {
	t.Helper()
	cfg := testConfig()
	token, err := auth.MintAccessToken(cfg.JWT, time.Now(), time.Hour, auth.AccessTokenPayload{UserID: uuid.New(), Role: role})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestHealthRoutes(t *testing.T) {
	router := newTestRouter(nil)

	for _, path := range []string{"/health/live", "/health/ready"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, rec.Code)
		}
	}
}

func TestReadinessFailsWhenDatabaseDown(t *testing.T) {
	router := NewRouter(testConfig(), nil, Deps{DB: stubPinger{err: errors.New("down")}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", rec.Code)
	}
}

func TestCartRouteAcceptsGuestSession(t *testing.T) {
	cart := &stubCart{}
	router := newTestRouter(cart)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set(middleware.SessionHeader, "guest-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if cart.owner.SessionID != "guest-1" {
		t.Fatalf("expected guest owner, got %+v", cart.owner)
	}
}

func TestCartRouteRequiresCaller(t *testing.T) {
	router := newTestRouter(&stubCart{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestMergeRequiresLogin(t *testing.T) {
	router := newTestRouter(&stubCart{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/merge", strings.NewReader(`{}`))
	req.Header.Set(middleware.SessionHeader, "guest-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	router := newTestRouter(nil)
	path := "/api/admin/v1/orders/" + uuid.NewString() + "/status"

	cases := []struct {
		name  string
		token string
		want  int
	}{
		{name: "anonymous", want: http.StatusUnauthorized},
		{name: "customer", token: adminToken(t, enums.UserRoleCustomer), want: http.StatusForbidden},
		// Orders service is not wired here, so an admin reaches the handler's
		// unavailable branch.
		{name: "admin", token: adminToken(t, enums.UserRoleAdmin), want: http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"status":"processing"}`))
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestPaymentWebhookRouteIsPublic(t *testing.T) {
	router := newTestRouter(nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payments", strings.NewReader(`{"id":"evt_1"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	// Reaches the handler without identity middleware; no service is wired.
	if rec.Code == http.StatusNotFound || rec.Code == http.StatusMethodNotAllowed {
		t.Fatalf("webhook route not mounted: %d", rec.Code)
	}
}

func TestUnknownRouteIsNotFound(t *testing.T) {
	router := newTestRouter(nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
}
