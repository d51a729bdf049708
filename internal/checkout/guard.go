package checkout

import (
	"context"
	"sync"
	"time"
)

// AttemptGuard lets each payment token be settled once.
type AttemptGuard interface {
	Claim(ctx context.Context, token, outcome string) (bool, error)
}

type setNXClient interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	CheckoutAttemptKey(token string) string
}

// RedisGuard records settled tokens with SETNX so replicas agree.
type RedisGuard struct {
	client setNXClient
	ttl    time.Duration
}

func NewRedisGuard(client setNXClient, ttl time.Duration) *RedisGuard {
	return &RedisGuard{client: client, ttl: ttl}
}

func (g *RedisGuard) Claim(ctx context.Context, token, outcome string) (bool, error) {
	return g.client.SetNX(ctx, g.client.CheckoutAttemptKey(token), outcome, g.ttl)
}

// MemoryGuard is the single-process guard.
type MemoryGuard struct {
	mu      sync.Mutex
	ttl     time.Duration
	settled map[string]time.Time
	now     func() time.Time
}

func NewMemoryGuard(ttl time.Duration) *MemoryGuard {
	return &MemoryGuard{ttl: ttl, settled: map[string]time.Time{}, now: time.Now}
}

func (g *MemoryGuard) Claim(_ context.Context, token, _ string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	for k, exp := range g.settled {
		if !exp.IsZero() && now.After(exp) {
			delete(g.settled, k)
		}
	}
	if _, ok := g.settled[token]; ok {
		return false, nil
	}
	var exp time.Time
	if g.ttl > 0 {
		exp = now.Add(g.ttl)
	}
	g.settled[token] = exp
	return true, nil
}
