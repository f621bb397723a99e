package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/scholaris-sms/scholaris/internal/shared"
)

const tokenIssuer = "scholaris"

// Claims is the payload carried by the signed credential cookie. Role names
// ride along so the gate can authorize without a database round trip; role
// changes take effect at the next token refresh.
type Claims struct {
	Email string   `json:"email"`
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies credential tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenManager constructs a TokenManager with the given signing secret and lifetime.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), ttl: ttl}
}

// TTL exposes the configured token lifetime.
func (m *TokenManager) TTL() time.Duration {
	return m.ttl
}

// Issue mints a signed token for the account. sessionID becomes the token ID
// so logout can revoke the matching session record.
func (m *TokenManager) Issue(accountID int64, email string, roles []string, sessionID string, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(m.ttl)
	claims := Claims{
		Email: email,
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(accountID, 10),
			ID:        sessionID,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks signature and expiry. Any failure maps to ErrUnauthenticated;
// an expired credential is not distinguished from a missing one.
func (m *TokenManager) Verify(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil || !parsed.Valid {
		return nil, shared.ErrUnauthenticated
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, shared.ErrUnauthenticated
	}
	return claims, nil
}

// Identity converts verified claims into the caller identity stored in context.
func (c *Claims) Identity() (*shared.Identity, error) {
	accountID, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return nil, shared.ErrUnauthenticated
	}
	return &shared.Identity{AccountID: accountID, Email: c.Email, Roles: c.Roles}, nil
}
