package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Store is a key-value store whose entries expire after a TTL.
type Store interface {
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	// Get returns the live value for key; ok is false when it is missing or expired.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Delete(ctx context.Context, key string) error
	// Incr adds one to the counter at key and returns the new count. A counter
	// that did not exist starts at 1 and expires after ttl.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

type entry struct {
	value   string
	expires time.Time
}

// MemoryStore keeps entries in process memory. Expiry is judged against the
// injected clock; Purge drops expired entries.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]entry
	clock   clockwork.Clock
}

// NewMemoryStore creates an empty store. A nil clock means the system clock.
func NewMemoryStore(clk clockwork.Clock) *MemoryStore {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	return &MemoryStore{entries: make(map[string]entry), clock: clk}
}

func (m *MemoryStore) Put(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry{value: value, expires: m.clock.Now().Add(ttl)}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return "", false, nil
	}
	if !m.clock.Now().Before(e.expires) {
		delete(m.entries, key)
		return "", false, nil
	}
	return e.value, true, nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *MemoryStore) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	e, ok := m.entries[key]
	if !ok || !now.Before(e.expires) {
		m.entries[key] = entry{value: "1", expires: now.Add(ttl)}
		return 1, nil
	}
	n, err := strconv.ParseInt(e.value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("cache: value at %q is not a counter", key)
	}
	n++
	e.value = strconv.FormatInt(n, 10)
	m.entries[key] = e
	return n, nil
}

// Purge removes expired entries and returns how many were dropped.
func (m *MemoryStore) Purge() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	n := 0
	for k, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, k)
			n++
		}
	}
	return n
}

// Len returns the number of stored entries, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// RedisStore keeps entries in Redis and lets the server expire them.
type RedisStore struct {
	client *Client
	prefix string
}

// NewRedisStore namespaces every key under prefix.
func NewRedisStore(c *Client, prefix string) *RedisStore {
	return &RedisStore{client: c, prefix: prefix}
}

func (r *RedisStore) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, r.prefix+key, value, ttl)
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, r.prefix+key)
	if errors.Is(err, ErrMiss) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	return r.client.Delete(ctx, r.prefix+key)
}

func (r *RedisStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return r.client.Incr(ctx, r.prefix+key, ttl)
}
