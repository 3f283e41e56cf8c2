// Package auth signs and verifies the tokens carried by webhook callback
// URLs, so only callers holding the shared secret can push call updates.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "call-scheduler"

// WebhookTokenManager mints and validates HS256 tokens for webhook URLs.
type WebhookTokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewWebhookTokenManager(secret string, ttl time.Duration) (*WebhookTokenManager, error) {
	if secret == "" {
		return nil, errors.New("auth: webhook secret is required")
	}
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &WebhookTokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Sign issues a token for the given subject.
func (m *WebhookTokenManager) Sign(subject string) (string, error) {
	now := m.now()
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Verify validates the token and returns its subject.
func (m *WebhookTokenManager) Verify(tokenString string) (string, error) {
	var claims jwt.RegisteredClaims

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(m.now),
		jwt.WithLeeway(30*time.Second), // clock skew tolerance
	)
	if _, err := parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return m.secret, nil
	}); err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errors.New("auth: token subject missing")
	}
	return claims.Subject, nil
}
