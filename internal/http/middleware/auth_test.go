package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wolfman30/clinic-assistant/internal/auth"
)

func TestAuthenticateAnonymousPassesThrough(t *testing.T) {
	mw := Authenticate("secret")
	req := httptest.NewRequest(http.MethodGet, "/ai/history", nil)
	rec := httptest.NewRecorder()

	called := false
	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if _, ok := auth.UserFromContext(r.Context()); ok {
			t.Fatalf("expected no user in context")
		}
	})).ServeHTTP(rec, req)

	if !called {
		t.Fatalf("expected handler to be called")
	}
}

func TestAuthenticateInvalidToken(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		header string
	}{
		{"wrong secret", "secret", "Bearer " + signedUserToken(t, "wrong", "u1", "patient")},
		{"not bearer", "secret", "Basic abc"},
		{"garbage", "secret", "Bearer not-a-token"},
		{"auth disabled", "", "Bearer " + signedUserToken(t, "secret", "u1", "patient")},
		{"missing subject", "secret", "Bearer " + signedUserToken(t, "secret", "", "admin")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ai/history", nil)
			req.Header.Set("Authorization", tt.header)
			rec := httptest.NewRecorder()

			Authenticate(tt.secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatalf("handler must not run")
			})).ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
			}
		})
	}
}

func TestAuthenticateValidToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ai/history", nil)
	req.Header.Set("Authorization", "Bearer "+signedUserToken(t, "secret", "user-42", "Patient"))
	rec := httptest.NewRecorder()

	var got *auth.User
	Authenticate("secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = auth.UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, req)

	if got == nil || got.ID != "user-42" || got.Role != auth.RolePatient {
		t.Fatalf("unexpected user %#v", got)
	}
}

func TestRequireRole(t *testing.T) {
	handler := Authenticate("secret")(RequireRole(auth.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	tests := []struct {
		name string
		role string
		want int
	}{
		{"anonymous", "", http.StatusUnauthorized},
		{"patient", "patient", http.StatusForbidden},
		{"admin", "admin", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/ai/stats", nil)
			if tt.role != "" {
				req.Header.Set("Authorization", "Bearer "+signedUserToken(t, "secret", "u1", tt.role))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("expected status %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func signedUserToken(t *testing.T, secret, subject, role string) string {
	t.Helper()
	claims := UserClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(5 * time.Minute)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}
