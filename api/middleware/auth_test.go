package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "issuer"}

type capturedIdentity struct {
	user    string
	role    string
	session string
}

func identityHandler(captured *capturedIdentity) http.Handler {
	return Identity(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.user = UserIDFromContext(r.Context())
		captured.role = RoleFromContext(r.Context())
		captured.session = SessionIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
}

func mintTestToken(t *testing.T, role enums.UserRole) (string, uuid.UUID) {
	t.Helper()
	userID := uuid.New()
	token, err := auth.MintAccessToken(testJWT, time.Now(), time.Hour, auth.AccessTokenPayload{UserID: userID, Role: role})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token, userID
}

func TestIdentityAllowsAnonymousGuest(t *testing.T) {
	var captured capturedIdentity
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(SessionHeader, "  guest-123  ")
	resp := httptest.NewRecorder()
	identityHandler(&captured).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if captured.session != "guest-123" || captured.user != "" {
		t.Fatalf("unexpected identity %+v", captured)
	}
}

func TestIdentityRejectsInvalidToken(t *testing.T) {
	var captured capturedIdentity
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	resp := httptest.NewRecorder()
	identityHandler(&captured).ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestIdentityRejectsNonBearerScheme(t *testing.T) {
	var captured capturedIdentity
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic Zm9vOmJhcg==")
	resp := httptest.NewRecorder()
	identityHandler(&captured).ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestIdentityAcceptsValidToken(t *testing.T) {
	token, userID := mintTestToken(t, enums.UserRoleAdmin)

	var captured capturedIdentity
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(SessionHeader, "guest-9")
	resp := httptest.NewRecorder()
	identityHandler(&captured).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if captured.user != userID.String() {
		t.Fatalf("expected user %s got %s", userID, captured.user)
	}
	if captured.role != string(enums.UserRoleAdmin) {
		t.Fatalf("expected admin role got %s", captured.role)
	}
	if captured.session != "guest-9" {
		t.Fatalf("expected session kept alongside the user, got %q", captured.session)
	}
}

func TestRequireRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	chain := Identity(testJWT, nil)(RequireRole(string(enums.UserRoleAdmin), nil)(ok))

	customer, _ := mintTestToken(t, enums.UserRoleCustomer)
	admin, _ := mintTestToken(t, enums.UserRoleAdmin)

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"anonymous", "", http.StatusUnauthorized},
		{"customer", "Bearer " + customer, http.StatusForbidden},
		{"admin", "Bearer " + admin, http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		resp := httptest.NewRecorder()
		chain.ServeHTTP(resp, req)
		if resp.Code != tc.want {
			t.Fatalf("%s: expected %d got %d", tc.name, tc.want, resp.Code)
		}
	}
}

func TestRequireCaller(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	chain := Identity(testJWT, nil)(RequireCaller(nil)(ok))

	resp := httptest.NewRecorder()
	chain.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d", resp.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(SessionHeader, "guest")
	resp = httptest.NewRecorder()
	chain.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for guest session, got %d", resp.Code)
	}
}

func TestIdentityRejectsMalformedSession(t *testing.T) {
	var captured capturedIdentity
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(SessionHeader, "guest id with spaces")
	resp := httptest.NewRecorder()
	identityHandler(&captured).ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if captured.session != "" {
		t.Fatalf("handler should not run, got %+v", captured)
	}
}
