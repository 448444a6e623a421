package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/prn-tf/stockwarden/internal/domain"
	"github.com/prn-tf/stockwarden/internal/repository"
)

// Claims are the JWT claims of a session token.
type Claims struct {
	Role  domain.Role `json:"role"`
	Stage Stage       `json:"stage"`
	jwt.RegisteredClaims
}

// TokenConfig configures a TokenIssuer.
type TokenConfig struct {
	Secret     []byte
	Issuer     string
	PendingTTL time.Duration
	SessionTTL time.Duration
}

// TokenIssuer signs, parses and revokes HS256 bearer tokens.
// Revocations are kept in the cache until the token would have expired.
type TokenIssuer struct {
	cfg   TokenConfig
	cache repository.Cache
	keys  repository.CacheKey
	now   func() time.Time
}

// NewTokenIssuer creates a TokenIssuer.
func NewTokenIssuer(cfg TokenConfig, cache repository.Cache) *TokenIssuer {
	return &TokenIssuer{
		cfg:   cfg,
		cache: cache,
		now:   time.Now,
	}
}

// Issue signs a token for user at stage.
func (t *TokenIssuer) Issue(user *domain.User, stage Stage) (string, time.Time, error) {
	ttl := t.cfg.SessionTTL
	if stage == StagePending {
		ttl = t.cfg.PendingTTL
	}

	now := t.now()
	expiresAt := now.Add(ttl)
	claims := Claims{
		Role:  user.Role,
		Stage: stage,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			Issuer:    t.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.cfg.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse validates raw and returns its claims. Invalid, expired or revoked
// tokens yield ErrUnauthenticated.
func (t *TokenIssuer) Parse(ctx context.Context, raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return t.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, fmt.Errorf("%w: token is missing subject or id", domain.ErrUnauthenticated)
	}

	revoked, err := t.cache.Exists(ctx, t.keys.RevokedToken(claims.ID))
	if err != nil {
		return nil, fmt.Errorf("failed to check token revocation: %w", err)
	}
	if revoked {
		return nil, fmt.Errorf("%w: token has been revoked", domain.ErrUnauthenticated)
	}
	return claims, nil
}

// Revoke denies claims for the rest of their lifetime.
func (t *TokenIssuer) Revoke(ctx context.Context, claims *Claims) error {
	if claims == nil || claims.ExpiresAt == nil {
		return errors.New("cannot revoke token without expiry")
	}
	ttl := claims.ExpiresAt.Sub(t.now())
	if ttl <= 0 {
		return nil
	}
	if err := t.cache.Set(ctx, t.keys.RevokedToken(claims.ID), []byte("1"), ttl); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}
