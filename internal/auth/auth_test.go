package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const testSecret = "test-secret-key-that-is-long-enough"

func testManager(expiry time.Duration) *JWTManager {
	return NewJWTManager(testSecret, "decor-inventory-api", "decor-inventory-api", expiry)
}

func TestJWTManager_ValidateConfig(t *testing.T) {
	tests := []struct {
		name     string
		secret   string
		issuer   string
		audience string
		expiry   time.Duration
		wantErr  bool
	}{
		{"valid config", testSecret, "iss", "aud", time.Hour, false},
		{"empty secret", "", "iss", "aud", time.Hour, true},
		{"short secret", "short", "iss", "aud", time.Hour, true},
		{"empty issuer", testSecret, "", "aud", time.Hour, true},
		{"empty audience", testSecret, "iss", "", time.Hour, true},
		{"zero expiry", testSecret, "iss", "aud", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewJWTManager(tt.secret, tt.issuer, tt.audience, tt.expiry)
			err := m.ValidateConfig()
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGenerateAndValidateToken(t *testing.T) {
	m := testManager(time.Hour)

	token, err := m.GenerateToken(7, []string{"staff"})
	if err != nil {
		t.Fatalf("GenerateToken() failed: %v", err)
	}

	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() failed: %v", err)
	}
	if claims.UserID != 7 {
		t.Errorf("Expected user ID 7, got %d", claims.UserID)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != "staff" {
		t.Errorf("Expected roles [staff], got %v", claims.Roles)
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	m := testManager(time.Hour)
	token, err := m.GenerateToken(1, []string{"admin"})
	if err != nil {
		t.Fatalf("GenerateToken() failed: %v", err)
	}

	other := NewJWTManager("a-completely-different-secret-key", "decor-inventory-api", "decor-inventory-api", time.Hour)
	if _, err := other.ValidateToken(token); err == nil {
		t.Error("Expected validation to fail with the wrong secret")
	}
}

func TestValidateTokenExpired(t *testing.T) {
	m := testManager(-time.Minute)
	token, err := m.GenerateToken(1, []string{"admin"})
	if err != nil {
		t.Fatalf("GenerateToken() failed: %v", err)
	}
	if _, err := m.ValidateToken(token); err == nil {
		t.Error("Expected validation to fail for an expired token")
	}
}

func TestClaims_HasRole(t *testing.T) {
	claims := &Claims{Roles: []string{"staff"}}

	if !claims.HasRole("staff") {
		t.Error("Expected HasRole(staff) to be true")
	}
	if !claims.HasRole("admin", "staff") {
		t.Error("Expected HasRole(admin, staff) to be true")
	}
	if claims.HasRole("admin") {
		t.Error("Expected HasRole(admin) to be false")
	}
}

func TestAuthMiddleware(t *testing.T) {
	m := testManager(time.Hour)
	handler := AuthMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserIDFromContext(r.Context()) != 3 {
			t.Error("Expected user ID 3 in context")
		}
		w.WriteHeader(http.StatusOK)
	}))

	// No header
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/items", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without header, got %d", w.Code)
	}

	// Garbage token
	req := httptest.NewRequest("GET", "/items", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 with garbage token, got %d", w.Code)
	}

	// Valid token
	token, err := m.GenerateToken(3, []string{"staff"})
	if err != nil {
		t.Fatalf("GenerateToken() failed: %v", err)
	}
	req = httptest.NewRequest("GET", "/items", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 with valid token, got %d", w.Code)
	}
}

func TestMustRole(t *testing.T) {
	handler := MustRole("admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// No claims in context
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("DELETE", "/items/1", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without claims, got %d", w.Code)
	}

	// Staff cannot reach admin-only routes
	claims := &Claims{UserID: 1, Roles: []string{"staff"}}
	req := httptest.NewRequest("DELETE", "/items/1", nil)
	req = req.WithContext(context.WithValue(req.Context(), ClaimsKey, claims))
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for staff, got %d", w.Code)
	}

	// Admin passes
	claims = &Claims{UserID: 1, Roles: []string{"admin"}}
	req = httptest.NewRequest("DELETE", "/items/1", nil)
	req = req.WithContext(context.WithValue(req.Context(), ClaimsKey, claims))
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 for admin, got %d", w.Code)
	}
}
