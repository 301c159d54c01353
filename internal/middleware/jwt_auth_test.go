package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestJWTAuth(t *testing.T, enabled bool) *JWTAuthMiddleware {
	t.Helper()
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	return NewJWTAuthMiddleware(&JWTAuthConfig{
		Enabled:           enabled,
		AdminUsername:     "admin",
		AdminPasswordHash: hash,
		JWTSecret:         "test-secret",
		JWTExpiry:         time.Hour,
		SkipPaths:         []string{"/health", "/metrics", "/webhook/*", "/auth/login"},
	}, nil)
}

func okHandler(user *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user != nil {
			*user = GetUserFromContext(r.Context())
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestJWTAuthMiddleware_ValidateCredentials(t *testing.T) {
	m := newTestJWTAuth(t, true)

	tests := []struct {
		name     string
		username string
		password string
		want     bool
	}{
		{"valid", "admin", "s3cret", true},
		{"wrong password", "admin", "nope", false},
		{"wrong user", "root", "s3cret", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.ValidateCredentials(tt.username, tt.password); got != tt.want {
				t.Errorf("ValidateCredentials() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestJWTAuthMiddleware_NoPasswordConfigured(t *testing.T) {
	m := NewJWTAuthMiddleware(&JWTAuthConfig{AdminUsername: "admin", JWTSecret: "x"}, nil)
	if m.ValidateCredentials("admin", "") {
		t.Error("expected login to fail without a configured password")
	}
	if m.Expiry() != 24*time.Hour {
		t.Errorf("expected default expiry of 24h, got %v", m.Expiry())
	}
}

func TestJWTAuthMiddleware_TokenRoundTrip(t *testing.T) {
	m := newTestJWTAuth(t, true)

	token, err := m.GenerateToken("admin")
	if err != nil {
		t.Fatalf("GenerateToken returned error: %v", err)
	}

	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken returned error: %v", err)
	}
	if claims.Username != "admin" || claims.Issuer != TokenIssuer {
		t.Errorf("unexpected claims %+v", claims)
	}
}

func TestJWTAuthMiddleware_RejectsForeignTokens(t *testing.T) {
	m := newTestJWTAuth(t, true)
	now := time.Now()

	sign := func(method jwt.SigningMethod, key interface{}, claims UserClaims) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		if err != nil {
			t.Fatalf("failed to sign token: %v", err)
		}
		return s
	}
	valid := jwt.RegisteredClaims{
		Issuer:    TokenIssuer,
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}

	tests := []struct {
		name  string
		token string
	}{
		{"wrong secret", sign(jwt.SigningMethodHS256, []byte("other"), UserClaims{"admin", valid})},
		{"wrong issuer", sign(jwt.SigningMethodHS256, []byte("test-secret"), UserClaims{"admin", jwt.RegisteredClaims{
			Issuer: "someone-else", ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		}})},
		{"expired", sign(jwt.SigningMethodHS256, []byte("test-secret"), UserClaims{"admin", jwt.RegisteredClaims{
			Issuer: TokenIssuer, ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute)),
		}})},
		{"no expiry", sign(jwt.SigningMethodHS256, []byte("test-secret"), UserClaims{"admin", jwt.RegisteredClaims{Issuer: TokenIssuer}})},
		{"wrong algorithm", sign(jwt.SigningMethodHS512, []byte("test-secret"), UserClaims{"admin", valid})},
		{"garbage", "not.a.token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.ValidateToken(tt.token); err == nil {
				t.Error("expected token to be rejected")
			}
		})
	}
}

func TestJWTAuthMiddleware_Wrap(t *testing.T) {
	m := newTestJWTAuth(t, true)
	token, err := m.GenerateToken("admin")
	if err != nil {
		t.Fatalf("GenerateToken returned error: %v", err)
	}

	tests := []struct {
		name       string
		path       string
		header     string
		upgrade    bool
		wantStatus int
		wantUser   string
	}{
		{"skip exact", "/health", "", false, http.StatusOK, ""},
		{"skip prefix", "/webhook/alert/jira", "", false, http.StatusOK, ""},
		{"missing token", "/api/decisions", "", false, http.StatusUnauthorized, ""},
		{"malformed header", "/api/decisions", "Token " + token, false, http.StatusUnauthorized, ""},
		{"invalid token", "/api/decisions", "Bearer nope", false, http.StatusUnauthorized, ""},
		{"valid token", "/api/decisions", "Bearer " + token, false, http.StatusOK, "admin"},
		{"query token on websocket", "/api/decisions/stream?token=" + token, "", true, http.StatusOK, "admin"},
		{"query token on plain request", "/api/decisions?token=" + token, "", false, http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var user string
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.upgrade {
				req.Header.Set("Upgrade", "websocket")
			}
			rec := httptest.NewRecorder()
			m.Wrap(okHandler(&user)).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if user != tt.wantUser {
				t.Errorf("user = %q, want %q", user, tt.wantUser)
			}
			if rec.Code == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") == "" {
				t.Error("expected WWW-Authenticate header")
			}
		})
	}
}

func TestJWTAuthMiddleware_Disabled(t *testing.T) {
	m := newTestJWTAuth(t, false)

	rec := httptest.NewRecorder()
	m.Wrap(okHandler(nil)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/decisions", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 when auth is disabled", rec.Code)
	}
}
