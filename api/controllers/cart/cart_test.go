package cart

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	cartdto "github.com/angelmondragon/storefront-backend/api/controllers/cart/dto"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	cartsvc "github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type stubCartService struct {
	record     *models.Cart
	merge      *cartsvc.MergeResult
	err        error
	lastOwner  cartsvc.Owner
	lastInput  cartsvc.ItemInput
	lastMerge  string
	lastRemove uuid.UUID
	lastVar    string
}

func (s *stubCartService) Get(_ context.Context, owner cartsvc.Owner) (*models.Cart, error) {
	s.lastOwner = owner
	return s.record, s.err
}

func (s *stubCartService) AddItem(_ context.Context, owner cartsvc.Owner, input cartsvc.ItemInput) (*models.Cart, error) {
	s.lastOwner = owner
	s.lastInput = input
	return s.record, s.err
}

func (s *stubCartService) UpdateItemQuantity(_ context.Context, owner cartsvc.Owner, input cartsvc.ItemInput) (*models.Cart, error) {
	s.lastOwner = owner
	s.lastInput = input
	return s.record, s.err
}

func (s *stubCartService) RemoveItem(_ context.Context, owner cartsvc.Owner, productID uuid.UUID, variantID string) (*models.Cart, error) {
	s.lastOwner = owner
	s.lastRemove = productID
	s.lastVar = variantID
	return s.record, s.err
}

func (s *stubCartService) Clear(context.Context, *gorm.DB, uuid.UUID) error {
	return nil
}

func (s *stubCartService) MergeOnLogin(_ context.Context, sessionID string, userID uuid.UUID) (*cartsvc.MergeResult, error) {
	s.lastMerge = sessionID
	s.lastOwner = cartsvc.UserOwner(userID)
	return s.merge, s.err
}

func sampleCart() *models.Cart {
	session := "guest-1"
	return &models.Cart{
		ID:        uuid.New(),
		SessionID: &session,
		Items: []models.CartItem{
			{ID: uuid.New(), ProductID: uuid.New(), Quantity: 2, UnitPriceCents: 1250},
			{ID: uuid.New(), ProductID: uuid.New(), VariantID: "red", Quantity: 1, UnitPriceCents: 500},
		},
	}
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func decodeCart(t *testing.T, resp *httptest.ResponseRecorder) cartdto.Cart {
	t.Helper()
	var envelope struct {
		Data cartdto.Cart `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return envelope.Data
}

func TestCartFetchGuestSession(t *testing.T) {
	record := sampleCart()
	svc := &stubCartService{record: record}
	handler := CartFetch(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req = req.WithContext(middleware.WithSessionID(req.Context(), "guest-1"))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !svc.lastOwner.IsGuest() || svc.lastOwner.SessionID != "guest-1" {
		t.Fatalf("unexpected owner %+v", svc.lastOwner)
	}
	cart := decodeCart(t, resp)
	if cart.ID != record.ID {
		t.Fatalf("unexpected cart id: %s", cart.ID)
	}
	if cart.ItemCount != 3 || cart.EstimatedSubtotalCents != 3000 {
		t.Fatalf("unexpected totals count=%d subtotal=%d", cart.ItemCount, cart.EstimatedSubtotalCents)
	}
}

func TestCartFetchRequiresIdentity(t *testing.T) {
	handler := CartFetch(&stubCartService{}, nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestCartAddItemUsesAuthenticatedUser(t *testing.T) {
	userID := uuid.New()
	productID := uuid.New()
	svc := &stubCartService{record: sampleCart()}
	handler := CartAddItem(svc, nil)

	body := `{"product_id":"` + productID.String() + `","variant_id":" blue ","quantity":2}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(body))
	ctx := middleware.WithSessionID(middleware.WithUserID(req.Context(), userID.String()), "guest-1")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req.WithContext(ctx))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.lastOwner.IsGuest() || *svc.lastOwner.UserID != userID {
		t.Fatalf("expected user owner, got %+v", svc.lastOwner)
	}
	if svc.lastInput.ProductID != productID || svc.lastInput.VariantID != "blue" || svc.lastInput.Quantity != 2 {
		t.Fatalf("unexpected input %+v", svc.lastInput)
	}
}

func TestCartAddItemRejectsZeroQuantity(t *testing.T) {
	svc := &stubCartService{record: sampleCart()}
	handler := CartAddItem(svc, nil)

	body := `{"product_id":"` + uuid.NewString() + `","quantity":0}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(body))
	req = req.WithContext(middleware.WithSessionID(req.Context(), "guest-1"))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCartAddItemSurfacesOutOfStock(t *testing.T) {
	svc := &stubCartService{err: pkgerrors.OutOfStock("p-1")}
	handler := CartAddItem(svc, nil)

	body := `{"product_id":"` + uuid.NewString() + `","quantity":5}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(body))
	req = req.WithContext(middleware.WithSessionID(req.Context(), "guest-1"))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
}

func TestCartUpdateItemReadsPathProduct(t *testing.T) {
	productID := uuid.New()
	svc := &stubCartService{record: sampleCart()}
	handler := CartUpdateItem(svc, nil)

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/cart/items/"+productID.String(), strings.NewReader(`{"quantity":0}`))
	req = withURLParam(req, "productId", productID.String())
	req = req.WithContext(middleware.WithSessionID(req.Context(), "guest-1"))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.lastInput.ProductID != productID || svc.lastInput.Quantity != 0 {
		t.Fatalf("unexpected input %+v", svc.lastInput)
	}
}

func TestCartRemoveItemPassesVariant(t *testing.T) {
	productID := uuid.New()
	svc := &stubCartService{record: sampleCart()}
	handler := CartRemoveItem(svc, nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/cart/items/"+productID.String()+"?variant_id=red", nil)
	req = withURLParam(req, "productId", productID.String())
	req = req.WithContext(middleware.WithSessionID(req.Context(), "guest-1"))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.lastRemove != productID || svc.lastVar != "red" {
		t.Fatalf("unexpected remove args %s %q", svc.lastRemove, svc.lastVar)
	}
}

func TestCartRemoveItemRejectsBadProductID(t *testing.T) {
	handler := CartRemoveItem(&stubCartService{}, nil)
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/cart/items/nope", nil)
	req = withURLParam(req, "productId", "nope")
	req = req.WithContext(middleware.WithSessionID(req.Context(), "guest-1"))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCartMergeRequiresLogin(t *testing.T) {
	handler := CartMerge(&stubCartService{}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/merge", nil)
	req = req.WithContext(middleware.WithSessionID(req.Context(), "guest-1"))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestCartMergeFallsBackToSessionHeader(t *testing.T) {
	userID := uuid.New()
	svc := &stubCartService{merge: &cartsvc.MergeResult{Cart: sampleCart(), Merged: 2, Skipped: 1}}
	handler := CartMerge(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/merge", nil)
	ctx := middleware.WithSessionID(middleware.WithUserID(req.Context(), userID.String()), "guest-1")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req.WithContext(ctx))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.lastMerge != "guest-1" {
		t.Fatalf("expected header session, got %q", svc.lastMerge)
	}
	var envelope struct {
		Data cartdto.MergeResult `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Merged != 2 || envelope.Data.Skipped != 1 {
		t.Fatalf("unexpected merge result %+v", envelope.Data)
	}
}

func TestCartMergePrefersBodySession(t *testing.T) {
	userID := uuid.New()
	svc := &stubCartService{merge: &cartsvc.MergeResult{Cart: sampleCart()}}
	handler := CartMerge(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/merge", strings.NewReader(`{"session_id":"guest-2"}`))
	ctx := middleware.WithSessionID(middleware.WithUserID(req.Context(), userID.String()), "guest-1")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req.WithContext(ctx))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.lastMerge != "guest-2" {
		t.Fatalf("expected body session, got %q", svc.lastMerge)
	}
}
