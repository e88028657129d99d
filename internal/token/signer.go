package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	id "foodlink/pkg/domain"
)

// Signer wraps session identifiers in signed compact tokens so scan payloads
// presented from participant devices cannot be forged or tampered with.
type Signer struct {
	key []byte
}

func NewSigner(key []byte) *Signer {
	return &Signer{key: key}
}

// Sign produces an HS256 token whose subject is the session id and whose
// expiry mirrors the identity token's window.
func (s *Signer) Sign(sessionID id.SessionID, issuedAt, expiresAt time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   sessionID.String(),
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Parse verifies the signature and extracts the session id. Expiry of the
// signed wrapper is not checked here; the store is the authority on token
// lifecycle and reports expiry consistently for signed and raw scans.
func (s *Signer) Parse(signed string) (id.SessionID, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(signed, &claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
			}
			return s.key, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return id.SessionID{}, fmt.Errorf("parse session token: %w", err)
	}
	return id.ParseSessionID(claims.Subject)
}
