package tokenstore

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "ticket-portal:credential:"

// Redis keeps one credential per scope in a shared Redis, so web shell
// replicas see the same visitor sessions.
type Redis struct {
	client *redis.Client
	key    string
}

// NewRedis returns a store for scope. A nil client yields an inert store.
func NewRedis(client *redis.Client, scope string) *Redis {
	return &Redis{client: client, key: redisKeyPrefix + scope + ":" + StorageKey}
}

// Key returns the Redis key holding the credential.
func (r *Redis) Key() string {
	return r.key
}

func (r *Redis) Get(ctx context.Context) (string, error) {
	if r == nil || r.client == nil {
		return "", nil
	}
	val, err := r.client.Get(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return val, err
}

func (r *Redis) Set(ctx context.Context, credential string) error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Set(ctx, r.key, credential, 0).Err()
}

func (r *Redis) Clear(ctx context.Context) error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Del(ctx, r.key).Err()
}
