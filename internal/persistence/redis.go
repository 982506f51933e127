package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Behnamfe76/ticket-portal/internal/config"
)

// CredentialCache is the redis client holding one credential key per scope.
type CredentialCache struct {
	Client *redis.Client
}

// OpenCredentialCache builds the client and checks the server within the
// connect timeout. The cache is returned even when the check fails so a
// host may choose to keep serving while redis comes back.
func OpenCredentialCache(ctx context.Context, cfg config.RedisConfig) (*CredentialCache, error) {
	cache := &CredentialCache{Client: redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := cache.Ping(pingCtx); err != nil {
		return cache, fmt.Errorf("reach redis %s: %w", cfg.Addr, err)
	}
	return cache, nil
}

// Close closes the client.
func (c *CredentialCache) Close() {
	if c != nil && c.Client != nil {
		_ = c.Client.Close()
	}
}

// Ping reports whether the credential keys' server answers.
func (c *CredentialCache) Ping(ctx context.Context) error {
	if c == nil || c.Client == nil {
		return errors.New("redis client not configured")
	}
	return c.Client.Ping(ctx).Err()
}
