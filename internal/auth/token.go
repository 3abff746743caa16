package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrMissingSigningKey is returned when a TokenIssuer is constructed
	// without a key. Callers must treat this as fatal at startup.
	ErrMissingSigningKey = errors.New("session token signing key is required")

	// ErrInvalidToken covers expired, tampered, and otherwise unusable
	// session tokens.
	ErrInvalidToken = errors.New("invalid session token")
)

// SessionClaims are the assertions embedded in a signed session token.
// Subject carries the user id; issued-at and expiry live in the
// registered claims and are covered by the signature.
type SessionClaims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer mints signed, time-bounded session tokens. The key is
// immutable after construction; tests supply their own deterministic key.
type TokenIssuer struct {
	key []byte
}

// NewTokenIssuer creates a token issuer with an explicit signing key.
func NewTokenIssuer(key []byte) (*TokenIssuer, error) {
	if len(key) == 0 {
		return nil, ErrMissingSigningKey
	}
	return &TokenIssuer{key: key}, nil
}

// Issue signs a session token for the given identity, valid for ttl.
func (i *TokenIssuer) Issue(userID, username, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})

	signed, err := token.SignedString(i.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return signed, nil
}

// Parse validates a session token and returns its claims. Expired and
// tampered tokens fail with ErrInvalidToken.
func (i *TokenIssuer) Parse(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return i.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
