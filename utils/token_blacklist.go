package utils

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const blacklistPrefix = "jwt:blacklist:"

// TokenBlacklist remembers revoked tokens until their natural expiration.
// It uses Redis when available and an in-memory map otherwise.
type TokenBlacklist struct {
	rc *redis.Client

	mu      sync.RWMutex
	entries map[string]time.Time
}

// NewTokenBlacklist creates a blacklist; rc may be nil.
func NewTokenBlacklist(rc *redis.Client) *TokenBlacklist {
	return &TokenBlacklist{rc: rc, entries: map[string]time.Time{}}
}

// Revoke stores a token until expiresAt to support logout and single-use tokens.
func (b *TokenBlacklist) Revoke(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if b.rc != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return b.rc.Set(ctx, blacklistPrefix+token, "1", ttl).Err()
	}
	b.mu.Lock()
	b.entries[token] = expiresAt
	b.sweepLocked()
	b.mu.Unlock()
	return nil
}

// IsRevoked checks if a token was revoked before natural expiration.
func (b *TokenBlacklist) IsRevoked(ctx context.Context, token string) bool {
	if b.rc != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		n, err := b.rc.Exists(ctx, blacklistPrefix+token).Result()
		if err != nil {
			// fail open to avoid locking everybody out during a Redis outage
			if Sugar != nil {
				Sugar.Warnf("blacklist lookup failed: %v", err)
			}
			return false
		}
		return n > 0
	}
	b.mu.RLock()
	expiresAt, ok := b.entries[token]
	b.mu.RUnlock()
	return ok && time.Now().Before(expiresAt)
}

func (b *TokenBlacklist) sweepLocked() {
	now := time.Now()
	for token, exp := range b.entries {
		if now.After(exp) {
			delete(b.entries, token)
		}
	}
}
