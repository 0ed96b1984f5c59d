package auth

import (
	"context"
	"time"

	"github.com/jordanlanch/crmleads/pkg/cache"
)

const blacklistPrefix = "jwt:blacklist:"

// TokenBlacklist manages revoked JWT tokens
type TokenBlacklist struct {
	store cache.Store
}

// NewTokenBlacklist creates a new token blacklist
func NewTokenBlacklist(store cache.Store) *TokenBlacklist {
	return &TokenBlacklist{store: store}
}

// Add revokes a token until it would have expired anyway.
func (b *TokenBlacklist) Add(ctx context.Context, token string, expiration time.Duration) error {
	if expiration <= 0 {
		return nil
	}
	return b.store.Put(ctx, blacklistPrefix+HashToken(token), "revoked", expiration)
}

// IsBlacklisted checks if a token is blacklisted
func (b *TokenBlacklist) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	_, ok, err := b.store.Get(ctx, blacklistPrefix+HashToken(token))
	return ok, err
}
