package infrastructure

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
)

const idempotencyKeyPrefix = "inventory:processed:"

// RedisIdempotencyGuard 用 SET NX 记录已处理的事件，过期后同一事件可再次生效
type RedisIdempotencyGuard struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewRedisIdempotencyGuard(client *goredis.Client, ttl time.Duration) *RedisIdempotencyGuard {
	return &RedisIdempotencyGuard{client: client, ttl: ttl}
}

func (g *RedisIdempotencyGuard) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := g.client.SetNX(ctx, idempotencyKeyPrefix+key, time.Now().UTC().Format(time.RFC3339), g.ttl).Result()
	if err != nil {
		return false, errors.Wrapf(err, "setnx %s", key)
	}
	return ok, nil
}

func (g *RedisIdempotencyGuard) Release(ctx context.Context, key string) error {
	return errors.Wrapf(g.client.Del(ctx, idempotencyKeyPrefix+key).Err(), "del %s", key)
}

// memoryGuardSweepEvery 是两次清理过期记录之间的声明次数
const memoryGuardSweepEvery = 1024

// MemoryIdempotencyGuard 是进程内实现。每 sweepEvery 次声明清理一遍过期记录，
// 过期但尚未清理的记录在再次声明同一 key 时被覆盖。
type MemoryIdempotencyGuard struct {
	mu         sync.Mutex
	ttl        time.Duration
	claimed    map[string]time.Time
	now        func() time.Time
	sweepEvery int
	sinceSweep int
}

func NewMemoryIdempotencyGuard(ttl time.Duration) *MemoryIdempotencyGuard {
	return &MemoryIdempotencyGuard{
		ttl:        ttl,
		claimed:    make(map[string]time.Time),
		now:        time.Now,
		sweepEvery: memoryGuardSweepEvery,
	}
}

func (g *MemoryIdempotencyGuard) Claim(_ context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()

	g.sinceSweep++
	if g.sinceSweep >= g.sweepEvery {
		g.sweep(now)
	}

	if expiresAt, ok := g.claimed[key]; ok && now.Before(expiresAt) {
		return false, nil
	}
	g.claimed[key] = now.Add(g.ttl)
	return true, nil
}

func (g *MemoryIdempotencyGuard) Release(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.claimed, key)
	return nil
}

// Len 返回当前保留的记录数
func (g *MemoryIdempotencyGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.claimed)
}

// sweep 删除所有已过期的记录，调用方需持有 mu
func (g *MemoryIdempotencyGuard) sweep(now time.Time) {
	for key, expiresAt := range g.claimed {
		if !now.Before(expiresAt) {
			delete(g.claimed, key)
		}
	}
	g.sinceSweep = 0
}
