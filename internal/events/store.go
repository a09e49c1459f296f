package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	redis "github.com/redis/go-redis/v9"
)

const defaultKeep = 100

// RedisStore keeps the most recent events in a capped Redis list.
type RedisStore struct {
	R    *redis.Client
	Key  string
	Keep int
}

func (s RedisStore) key() string {
	if s.Key == "" {
		return "xmoney:widget-events"
	}
	return s.Key
}

func (s RedisStore) keep() int {
	if s.Keep <= 0 {
		return defaultKeep
	}
	return s.Keep
}

func (s RedisStore) Append(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	pipe := s.R.TxPipeline()
	pipe.LPush(ctx, s.key(), data)
	pipe.LTrim(ctx, s.key(), 0, int64(s.keep()-1))
	_, err = pipe.Exec(ctx)
	return err
}

func (s RedisStore) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 || limit > s.keep() {
		limit = s.keep()
	}
	rows, err := s.R.LRange(ctx, s.key(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Event, 0, len(rows))
	for _, row := range rows {
		var ev Event
		if err := json.Unmarshal([]byte(row), &ev); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		out = append(out, ev)
	}
	return out, nil
}

// MemoryStore is an in-process ring of recent events.
type MemoryStore struct {
	Keep int

	mu     sync.Mutex
	events []Event
}

func (m *MemoryStore) Append(_ context.Context, event Event) error {
	keep := m.Keep
	if keep <= 0 {
		keep = defaultKeep
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append([]Event{event}, m.events...)
	if len(m.events) > keep {
		m.events = m.events[:keep]
	}
	return nil
}

func (m *MemoryStore) Recent(_ context.Context, limit int) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 || limit > len(m.events) {
		limit = len(m.events)
	}
	return append([]Event(nil), m.events[:limit]...), nil
}
