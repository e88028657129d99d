// Package auth validates the bearer tokens minted by the front-end service.
package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"foodlink/internal/platform/middleware"
)

type bearerClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTValidator checks HS256 bearer tokens sharing the service signing key.
type JWTValidator struct {
	key []byte
}

func NewJWTValidator(key []byte) *JWTValidator {
	return &JWTValidator{key: key}
}

// ValidateToken verifies the signature and standard claims and extracts the
// account id and role.
func (v *JWTValidator) ValidateToken(tokenString string) (*middleware.Claims, error) {
	var claims bearerClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
			}
			return v.key, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return nil, fmt.Errorf("parse bearer token: %w", err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("bearer token has no subject")
	}
	return &middleware.Claims{AccountID: claims.Subject, Role: claims.Role}, nil
}
