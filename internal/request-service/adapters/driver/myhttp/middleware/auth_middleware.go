package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"blood-link/internal/request-service/adapters/driver/myhttp/handle"

	"github.com/golang-jwt/jwt"
)

var (
	ErrEmptyToken   = errors.New("empty JWT-Token")
	ErrInvalidToken = errors.New("invalid JWT-Token")
	ErrNoUser       = errors.New("user_id not found in token")
)

type AuthMiddleware struct {
	accessSecret string
}

func NewAuthMiddleware(accessSecret string) *AuthMiddleware {
	return &AuthMiddleware{
		accessSecret: accessSecret,
	}
}

func (am *AuthMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userId, err := ParseToken(am.accessSecret, r.Header.Get("Authorization"))
		if err != nil {
			handle.JsonError(w, http.StatusUnauthorized, err)
			return
		}

		r.Header.Set(handle.UserHeader, userId)

		next.ServeHTTP(w, r)
	})
}

// ParseToken validates an HMAC signed token (with or without the Bearer prefix)
// and returns its user_id claim. Expiry is checked when the token carries exp.
func ParseToken(secret, tokenString string) (string, error) {
	tokenString = strings.TrimSpace(strings.TrimPrefix(tokenString, "Bearer "))
	if tokenString == "" {
		return "", ErrEmptyToken
	}
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	userId, ok := claims["user_id"].(string)
	if !ok || userId == "" {
		return "", ErrNoUser
	}
	return userId, nil
}
