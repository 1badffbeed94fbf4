// Package auth issues and verifies session tokens and hashes passwords.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/blogify/internal/common"
	"github.com/dmitrijs2005/blogify/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenKind distinguishes access tokens from refresh tokens. Each kind is
// signed with its own secret.
type TokenKind string

const (
	AccessToken  TokenKind = "access"
	RefreshToken TokenKind = "refresh"
)

// Claims carries the user id and role alongside the registered claims
// (sub, iat, exp, jti).
type Claims struct {
	jwt.RegisteredClaims
	UserID string      `json:"userId"`
	Role   models.Role `json:"role"`
	Kind   TokenKind   `json:"kind"`
}

type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

type Option func(*TokenIssuer)

// WithClock replaces time.Now for both issuing and verifying.
func WithClock(now func() time.Time) Option {
	return func(t *TokenIssuer) { t.now = now }
}

func NewTokenIssuer(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration, opts ...Option) *TokenIssuer {
	t := &TokenIssuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *TokenIssuer) AccessTTL() time.Duration  { return t.accessTTL }
func (t *TokenIssuer) RefreshTTL() time.Duration { return t.refreshTTL }

func (t *TokenIssuer) IssueAccessToken(userID string, role models.Role) (string, error) {
	return t.issue(userID, role, AccessToken)
}

func (t *TokenIssuer) IssueRefreshToken(userID string, role models.Role) (string, error) {
	return t.issue(userID, role, RefreshToken)
}

func (t *TokenIssuer) issue(userID string, role models.Role, kind TokenKind) (string, error) {
	if userID == "" {
		return "", errors.New("empty user id")
	}

	secret, ttl := t.keyFor(kind)
	now := t.now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		UserID: userID,
		Role:   role,
		Kind:   kind,
	})

	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, nil
}

// Verify checks signature, algorithm, expiry and kind. It returns
// common.ErrTokenExpired for expired tokens and common.ErrInvalidToken for
// every other failure.
func (t *TokenIssuer) Verify(tokenString string, kind TokenKind) (*Claims, error) {
	secret, _ := t.keyFor(kind)
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid || claims.UserID == "" || claims.Kind != kind {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}

func (t *TokenIssuer) keyFor(kind TokenKind) ([]byte, time.Duration) {
	if kind == RefreshToken {
		return t.refreshSecret, t.refreshTTL
	}
	return t.accessSecret, t.accessTTL
}
