package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"blood-link/internal/request-service/adapters/driver/myhttp/handle"

	"github.com/golang-jwt/jwt"
)

const secret = "test-secret"

func sign(t *testing.T, key string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestWrap(t *testing.T) {
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get(handle.UserHeader)
		w.WriteHeader(http.StatusNoContent)
	})
	h := NewAuthMiddleware(secret).Wrap(next)

	tests := []struct {
		name   string
		header string
		code   int
		user   string
	}{
		{"missing", "", http.StatusUnauthorized, ""},
		{"garbage", "Bearer nope", http.StatusUnauthorized, ""},
		{"wrong key", "Bearer " + sign(t, "other", jwt.MapClaims{"user_id": "u1"}), http.StatusUnauthorized, ""},
		{"expired", "Bearer " + sign(t, secret, jwt.MapClaims{"user_id": "u1", "exp": time.Now().Add(-time.Hour).Unix()}), http.StatusUnauthorized, ""},
		{"no user", "Bearer " + sign(t, secret, jwt.MapClaims{"role": "donor"}), http.StatusUnauthorized, ""},
		{"ok", "Bearer " + sign(t, secret, jwt.MapClaims{"user_id": "u1", "exp": time.Now().Add(time.Hour).Unix()}), http.StatusNoContent, "u1"},
		{"ok without prefix", sign(t, secret, jwt.MapClaims{"user_id": "u2"}), http.StatusNoContent, "u2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/requests/available", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			// a client supplied header must never survive authentication
			req.Header.Set(handle.UserHeader, "spoofed")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.code {
				t.Fatalf("code = %d, want %d", rec.Code, tt.code)
			}
			if seen != tt.user {
				t.Fatalf("user = %q, want %q", seen, tt.user)
			}
		})
	}
}
