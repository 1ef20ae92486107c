// Package auth guards the daemon API with optional HS256 bearer tokens and
// per-caller rate limits.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is how long tokens minted by local clients stay valid.
const DefaultTokenTTL = time.Hour

var ErrInvalidToken = errors.New("invalid token")

// Manager signs and validates the tokens accepted by the API.
type Manager struct {
	secret   []byte
	duration time.Duration
}

// Claims is the token payload. Subject names the calling client.
type Claims struct {
	Profile string `json:"profile,omitempty"`
	jwt.RegisteredClaims
}

// NewManager returns a manager signing with secret. A non-positive
// duration uses DefaultTokenTTL.
func NewManager(secret string, duration time.Duration) *Manager {
	if duration <= 0 {
		duration = DefaultTokenTTL
	}
	return &Manager{secret: []byte(secret), duration: duration}
}

// Issue mints a token for subject scoped to profile.
func (m *Manager) Issue(subject, profile string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(m.duration)
	claims := &Claims{
		Profile: profile,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, expiresAt, nil
}

// Verify parses a token and returns its claims.
func (m *Manager) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
