// Package auth verifies bearer tokens issued by the identity provider and
// turns them into registered-user ids.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrNoVerifier   = errors.New("bearer tokens are not accepted")
)

// TokenVerifier resolves a bearer token to the subject user id.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// JWTVerifier validates HS256 tokens and returns their "sub" claim.
type JWTVerifier struct {
	secretKey []byte
	issuer    string
	leeway    time.Duration
}

// NewJWTVerifier returns a verifier keyed by secret. An empty issuer skips
// the "iss" check.
func NewJWTVerifier(secret, issuer string) *JWTVerifier {
	return &JWTVerifier{secretKey: []byte(secret), issuer: issuer, leeway: 30 * time.Second}
}

// Verify parses token and returns its subject.
func (v *JWTVerifier) Verify(_ context.Context, token string) (string, error) {
	if len(v.secretKey) == 0 {
		return "", ErrNoVerifier
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secretKey, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", ErrInvalidToken
	}
	if !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// Sign issues an HS256 token for subject. It is used by tests and local
// tooling; production tokens come from the identity provider.
func (v *JWTVerifier) Sign(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    v.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secretKey)
}
