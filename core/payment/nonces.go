package payment

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// MemoryNonceRegistry tracks consumed nonces in-process. Sufficient for
// a single-instance deployment; replay protection resets on restart.
type MemoryNonceRegistry struct {
	mu   sync.Mutex
	used map[string]struct{}
}

// NewMemoryNonceRegistry creates an empty registry.
func NewMemoryNonceRegistry() *MemoryNonceRegistry {
	return &MemoryNonceRegistry{used: make(map[string]struct{})}
}

// Consume marks the nonce used; false when it already was.
func (r *MemoryNonceRegistry) Consume(_ context.Context, nonce string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.used[nonce]; ok {
		return false, nil
	}
	r.used[nonce] = struct{}{}
	return true, nil
}

// RedisNonceRegistry tracks consumed nonces in Redis, so replay
// protection survives restarts and is shared between instances.
type RedisNonceRegistry struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisNonceRegistry creates a registry over an existing client.
// Consumed nonces expire after ttl.
func NewRedisNonceRegistry(client *redis.Client, ttl time.Duration) *RedisNonceRegistry {
	return &RedisNonceRegistry{client: client, ttl: ttl}
}

// Consume marks the nonce used via SETNX.
func (r *RedisNonceRegistry) Consume(ctx context.Context, nonce string) (bool, error) {
	return r.client.SetNX(ctx, "payment_nonce:"+nonce, "1", r.ttl).Result()
}
