// Package memory implements an in-process store driver.
//
// It exists for development and tests: atomicity only holds within a single
// process, so it cannot back a replicated deployment.
package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/havenworlds/haven-relay/internal/platform/store"
)

func init() {
	store.Register("memory", func(raw map[string]any) (store.Store, error) {
		return New(), nil
	})
}

// Memory is a mutex-guarded map store with lazy expiry.
type Memory struct {
	mu      sync.Mutex
	values  map[string]string
	hashes  map[string]map[string]string
	expiry  map[string]time.Time
	closed  bool

	// now is swappable in tests.
	now func() time.Time
}

// New creates an empty in-memory store.
func New() *Memory {
	return &Memory{
		values: make(map[string]string),
		hashes: make(map[string]map[string]string),
		expiry: make(map[string]time.Time),
		now:    time.Now,
	}
}

// SetNowFunc overrides the clock used for expiry checks. Test use only.
func (m *Memory) SetNowFunc(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// purgeLocked removes key if its TTL has elapsed. Callers hold m.mu.
func (m *Memory) purgeLocked(key string) {
	deadline, ok := m.expiry[key]
	if !ok || m.now().Before(deadline) {
		return
	}
	delete(m.values, key)
	delete(m.hashes, key)
	delete(m.expiry, key)
}

func (m *Memory) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, store.ErrClosed
	}
	m.purgeLocked(key)

	var current int64
	if raw, ok := m.values[key]; ok {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("value at %q is not an integer: %w", key, err)
		}
		current = n
	}
	current += delta
	m.values[key] = strconv.FormatInt(current, 10)
	return current, nil
}

func (m *Memory) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return "", store.ErrClosed
	}
	m.purgeLocked(key)

	v, ok := m.values[key]
	if !ok {
		return "", store.ErrNotFound
	}
	return v, nil
}

func (m *Memory) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return store.ErrClosed
	}
	m.values[key] = value
	delete(m.expiry, key)
	return nil
}

func (m *Memory) HashSet(ctx context.Context, key, field, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return store.ErrClosed
	}
	m.purgeLocked(key)

	h, ok := m.hashes[key]
	if !ok {
		h = make(map[string]string)
		m.hashes[key] = h
	}
	h[field] = value
	return nil
}

func (m *Memory) HashGetAll(ctx context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, store.ErrClosed
	}
	m.purgeLocked(key)

	out := make(map[string]string, len(m.hashes[key]))
	for f, v := range m.hashes[key] {
		out[f] = v
	}
	return out, nil
}

func (m *Memory) HashGetAllDelete(ctx context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, store.ErrClosed
	}
	m.purgeLocked(key)

	h := m.hashes[key]
	delete(m.hashes, key)
	delete(m.expiry, key)
	if h == nil {
		h = make(map[string]string)
	}
	return h, nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return store.ErrClosed
	}
	delete(m.values, key)
	delete(m.hashes, key)
	delete(m.expiry, key)
	return nil
}

func (m *Memory) Expire(ctx context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return store.ErrClosed
	}
	m.purgeLocked(key)

	_, hasValue := m.values[key]
	_, hasHash := m.hashes[key]
	if !hasValue && !hasHash {
		return nil
	}
	m.expiry[key] = m.now().Add(ttl)
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.values = nil
	m.hashes = nil
	m.expiry = nil
	return nil
}

var _ store.Store = (*Memory)(nil)
