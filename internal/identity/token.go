// Package identity issues and verifies operator tokens: short-lived HS256
// JWTs that authorise writes to the incident API.
package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Scopes an operator token may carry.
const (
	ScopeIncidentsWrite = "incidents:write"
	ScopeLedgerRead     = "ledger:read"
)

// MinSecretLen is the shortest accepted HMAC secret, in bytes.
const MinSecretLen = 32

// ErrWeakSecret is returned by NewTokenIssuer for secrets shorter than MinSecretLen.
var ErrWeakSecret = errors.New("operator secret too short")

// OperatorClaims are the JWT claims of an operator token.
type OperatorClaims struct {
	jwt.RegisteredClaims
	Operator string   `json:"operator"`
	Scopes   []string `json:"scopes"`
}

// HasScope reports whether the claims grant scope.
func (c *OperatorClaims) HasScope(scope string) bool {
	if c == nil {
		return false
	}
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// TokenIssuer issues and verifies operator tokens signed with HS256.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates a TokenIssuer.
//
//	secret: HMAC key, at least MinSecretLen bytes.
//	issuer: the "iss" claim value.
//	ttl: token lifetime (default: 1 hour).
func NewTokenIssuer(secret []byte, issuer string, ttl time.Duration) (*TokenIssuer, error) {
	if len(secret) < MinSecretLen {
		return nil, fmt.Errorf("%w: need %d bytes, got %d", ErrWeakSecret, MinSecretLen, len(secret))
	}
	if ttl == 0 {
		ttl = time.Hour
	}
	return &TokenIssuer{
		secret: append([]byte(nil), secret...),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Issue creates a signed token for operator with the requested scopes.
func (t *TokenIssuer) Issue(operator string, scopes []string) (string, error) {
	now := t.now().UTC()
	claims := OperatorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   operator,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			ID:        uuid.New().String(),
		},
		Operator: operator,
		Scopes:   scopes,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates an operator token, returning its claims on success.
func (t *TokenIssuer) Verify(tokenStr string) (*OperatorClaims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&OperatorClaims{},
		func(tok *jwt.Token) (any, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
			}
			return t.secret, nil
		},
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}

	claims, ok := token.Claims.(*OperatorClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// TTL returns the configured token lifetime.
func (t *TokenIssuer) TTL() time.Duration { return t.ttl }
