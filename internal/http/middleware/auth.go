package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wolfman30/clinic-assistant/internal/auth"
)

// UserClaims is the HMAC-signed token issued by the platform's auth service.
type UserClaims struct {
	Role  string `json:"role"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Authenticate attaches the bearer token's user to the request context.
// Requests without a token continue anonymously; invalid tokens are rejected.
func Authenticate(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			if secret == "" {
				http.Error(w, "authentication disabled", http.StatusUnauthorized)
				return
			}
			if !strings.HasPrefix(header, "Bearer ") {
				http.Error(w, "malformed authorization header", http.StatusUnauthorized)
				return
			}

			user, err := parseUser(strings.TrimPrefix(header, "Bearer "), secret)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), user)))
		})
	}
}

// RequireRole rejects callers that are anonymous (401) or lack every role (403).
func RequireRole(roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := auth.UserFromContext(r.Context())
			if !ok {
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}
			if !auth.HasRole(user, roles...) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func parseUser(tokenString, secret string) (*auth.User, error) {
	claims := UserClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.Subject == "" {
		return nil, jwt.ErrTokenRequiredClaimMissing
	}
	return &auth.User{
		ID:    claims.Subject,
		Role:  auth.ParseRole(claims.Role),
		Email: claims.Email,
	}, nil
}
