package notify

import (
	"context"
	"strconv"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisReplay claims delivery keys with SET NX so several instances behind a
// load balancer forward each widget event once.
type RedisReplay struct {
	Client redis.UniversalClient
}

func (r RedisReplay) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if r.Client == nil {
		return true, nil
	}
	stamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	return r.Client.SetNX(ctx, key, stamp, ttl).Result()
}

func (r RedisReplay) Release(ctx context.Context, key string) error {
	if r.Client == nil {
		return nil
	}
	return r.Client.Del(ctx, key).Err()
}

// MemoryReplay is the single-instance fallback used when no redis is configured.
type MemoryReplay struct {
	mu      sync.Mutex
	expires map[string]time.Time
	Now     func() time.Time
}

func (m *MemoryReplay) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	if m.Now != nil {
		now = m.Now()
	}
	if m.expires == nil {
		m.expires = make(map[string]time.Time)
	}
	for k, exp := range m.expires {
		if !now.Before(exp) {
			delete(m.expires, k)
		}
	}
	if _, held := m.expires[key]; held {
		return false, nil
	}
	m.expires[key] = now.Add(ttl)
	return true, nil
}

func (m *MemoryReplay) Release(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.expires, key)
	m.mu.Unlock()
	return nil
}
