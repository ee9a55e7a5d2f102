package auth

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Revoker records logged-out token ids until the token would have expired anyway.
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

const revokedKeyPrefix = "auth:revoked:"

type RedisRevoker struct {
	rdb redis.Cmdable
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewRedisRevoker(rdb redis.Cmdable) *RedisRevoker {
	return &RedisRevoker{rdb: rdb, clock: time.Now}
}

func (r *RedisRevoker) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := until.Sub(r.clock())
	if ttl <= 0 {
		return nil
	}
	return r.rdb.Set(ctx, revokedKeyPrefix+tokenID, 1, ttl).Err()
}

func (r *RedisRevoker) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.rdb.Exists(ctx, revokedKeyPrefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MemoryRevoker is an in-process Revoker for tests and single-node local runs.
type MemoryRevoker struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	clock   func() time.Time
}

func NewMemoryRevoker() *MemoryRevoker {
	return &MemoryRevoker{revoked: map[string]time.Time{}, clock: time.Now}
}

func (r *MemoryRevoker) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked[tokenID] = until
	return nil
}

func (r *MemoryRevoker) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	until, ok := r.revoked[tokenID]
	if !ok {
		return false, nil
	}
	if !r.clock().Before(until) {
		delete(r.revoked, tokenID)
		return false, nil
	}
	return true, nil
}
