package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// NonceStore issues single-use sign-in nonces and consumes them during
// signature verification. A nonce is valid once, within its TTL.
type NonceStore interface {
	Issue(ctx context.Context) (string, error)
	// Consume returns true when the nonce was outstanding and unexpired;
	// it is removed either way.
	Consume(ctx context.Context, nonce string) (bool, error)
}

func newNonce() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// MemoryNonceStore keeps outstanding nonces in-process.
type MemoryNonceStore struct {
	mu     sync.Mutex
	ttl    time.Duration
	issued map[string]time.Time
}

// NewMemoryNonceStore creates a store whose nonces expire after ttl.
func NewMemoryNonceStore(ttl time.Duration) *MemoryNonceStore {
	return &MemoryNonceStore{ttl: ttl, issued: make(map[string]time.Time)}
}

// Issue generates and records a new nonce.
func (s *MemoryNonceStore) Issue(_ context.Context) (string, error) {
	nonce, err := newNonce()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	s.issued[nonce] = time.Now()
	return nonce, nil
}

// Consume removes the nonce and reports whether it was live.
func (s *MemoryNonceStore) Consume(_ context.Context, nonce string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	issuedAt, ok := s.issued[nonce]
	if !ok {
		return false, nil
	}
	delete(s.issued, nonce)
	if time.Since(issuedAt) > s.ttl {
		return false, nil
	}
	return true, nil
}

// sweepLocked drops expired nonces. Caller holds the lock.
func (s *MemoryNonceStore) sweepLocked() {
	for nonce, issuedAt := range s.issued {
		if time.Since(issuedAt) > s.ttl {
			delete(s.issued, nonce)
		}
	}
}

// RedisNonceStore keeps outstanding nonces in Redis, surviving restarts
// and shared between instances.
type RedisNonceStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisNonceStore creates a store over an existing client.
func NewRedisNonceStore(client *redis.Client, ttl time.Duration) *RedisNonceStore {
	return &RedisNonceStore{client: client, ttl: ttl}
}

// Issue generates a nonce and records it with the store TTL.
func (s *RedisNonceStore) Issue(ctx context.Context) (string, error) {
	nonce, err := newNonce()
	if err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, "auth_nonce:"+nonce, "1", s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to record nonce: %w", err)
	}
	return nonce, nil
}

// Consume atomically fetches and deletes the nonce.
func (s *RedisNonceStore) Consume(ctx context.Context, nonce string) (bool, error) {
	_, err := s.client.GetDel(ctx, "auth_nonce:"+nonce).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
