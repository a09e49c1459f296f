package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Storage keys shared with the browser playground.
const (
	KeySiteID    = "xmoney-site-id"
	KeyPublicKey = "xmoney-public-key"
	KeySecretKey = "xmoney-secret-key"
)

// Keys lists every credential key in a stable order.
var Keys = []string{KeySiteID, KeyPublicKey, KeySecretKey}

// ErrReadOnly is returned by stores that cannot be written.
var ErrReadOnly = errors.New("credentials: store is read-only")

// Store persists credential values and notifies subscribers when they change.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	// Subscribe calls fn with the changed key until cancel is called or ctx ends.
	Subscribe(ctx context.Context, fn func(key string)) (func(), error)
}

// Load reads all three keys from store and derives the signing fields.
func Load(ctx context.Context, store Store) (Credentials, error) {
	values := make(map[string]string, len(Keys))
	for _, key := range Keys {
		v, err := store.Get(ctx, key)
		if err != nil {
			return Credentials{}, fmt.Errorf("load %s: %w", key, err)
		}
		values[key] = v
	}
	return New(values[KeySiteID], values[KeyPublicKey], values[KeySecretKey]), nil
}

// Save writes the non-empty fields of c into store.
func Save(ctx context.Context, store Store, c Credentials) error {
	pairs := map[string]string{
		KeySiteID:    c.SiteID,
		KeyPublicKey: c.PublicKey,
		KeySecretKey: c.SecretKey,
	}
	for _, key := range Keys {
		if pairs[key] == "" {
			continue
		}
		if err := store.Set(ctx, key, pairs[key]); err != nil {
			return fmt.Errorf("save %s: %w", key, err)
		}
	}
	return nil
}

func encodeValue(value string) string {
	data, _ := json.Marshal(value)
	return string(data)
}

// decodeValue accepts JSON-encoded strings and falls back to the raw value.
func decodeValue(raw string) string {
	var s string
	if err := json.Unmarshal([]byte(raw), &s); err == nil {
		return s
	}
	return raw
}

func isKnownKey(key string) bool {
	for _, k := range Keys {
		if k == key {
			return true
		}
	}
	return false
}

// MemoryStore keeps values in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
	subs   map[int]func(string)
	nextID int
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: map[string]string{}, subs: map[int]func(string){}}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	raw, ok := m.values[key]
	if !ok {
		return "", nil
	}
	return decodeValue(raw), nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	if !isKnownKey(key) {
		return fmt.Errorf("credentials: unknown key %q", key)
	}
	m.mu.Lock()
	m.values[key] = encodeValue(value)
	ids := make([]int, 0, len(m.subs))
	for id := range m.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	subs := make([]func(string), 0, len(ids))
	for _, id := range ids {
		subs = append(subs, m.subs[id])
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(key)
	}
	return nil
}

func (m *MemoryStore) Subscribe(ctx context.Context, fn func(string)) (func(), error) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	m.mu.Unlock()

	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
			close(done)
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()
	return cancel, nil
}

// RedisStore keeps values under Prefix and publishes changed keys on Channel.
type RedisStore struct {
	R       *redis.Client
	Prefix  string
	Channel string
}

// NewRedisStore applies default key prefix and channel names.
func NewRedisStore(r *redis.Client) *RedisStore {
	return &RedisStore{R: r, Prefix: "xmoney:credentials:", Channel: "xmoney:credentials:changed"}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	raw, err := s.R.Get(ctx, s.Prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return decodeValue(raw), nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if !isKnownKey(key) {
		return fmt.Errorf("credentials: unknown key %q", key)
	}
	if err := s.R.Set(ctx, s.Prefix+key, encodeValue(value), 0).Err(); err != nil {
		return err
	}
	return s.R.Publish(ctx, s.Channel, key).Err()
}

func (s *RedisStore) Subscribe(ctx context.Context, fn func(string)) (func(), error) {
	sub := s.R.Subscribe(ctx, s.Channel)
	// wait for the subscription to be confirmed so no publish is missed
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", s.Channel, err)
	}

	ctx, stop := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if isKnownKey(msg.Payload) {
					fn(msg.Payload)
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			stop()
			if err := sub.Close(); err != nil {
				log.Debug().Err(err).Msg("credentials subscription close")
			}
			<-done
		})
	}, nil
}

// EnvStore serves values from the process environment. It never changes.
type EnvStore struct {
	k *koanf.Koanf
}

var envNames = map[string]string{
	KeySiteID:    "XMONEY_SITE_ID",
	KeyPublicKey: "XMONEY_PUBLIC_KEY",
	KeySecretKey: "XMONEY_SECRET_KEY",
}

// NewEnvStore snapshots XMONEY_* variables.
func NewEnvStore() (*EnvStore, error) {
	k := koanf.New(".")
	if err := k.Load(env.Provider("XMONEY_", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	return &EnvStore{k: k}, nil
}

func (s *EnvStore) Get(_ context.Context, key string) (string, error) {
	name, ok := envNames[key]
	if !ok {
		return "", nil
	}
	return decodeValue(s.k.String(name)), nil
}

func (s *EnvStore) Set(context.Context, string, string) error {
	return ErrReadOnly
}

func (s *EnvStore) Subscribe(context.Context, func(string)) (func(), error) {
	return func() {}, nil
}

// Watch reloads credentials whenever the store reports a change and passes
// them to fn. It blocks until ctx is done.
func Watch(ctx context.Context, store Store, fn func(Credentials)) error {
	changed := make(chan struct{}, 1)
	cancel, err := store.Subscribe(ctx, func(string) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return err
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changed:
			loadCtx, done := context.WithTimeout(ctx, 2*time.Second)
			c, err := Load(loadCtx, store)
			done()
			if err != nil {
				log.Warn().Err(err).Msg("reload credentials")
				continue
			}
			fn(c)
		}
	}
}
