package keystore

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"
)

// ErrUnavailable is returned by a Memory store that has been marked down.
var ErrUnavailable = errors.New("keystore: store unavailable")

// Memory implements Store in process. It backs tests and local development
// runs without a Redis; expiry is checked lazily on access.
type Memory struct {
	mu     sync.Mutex
	now    func() time.Time
	lists  map[string][]string
	values map[string]memoryValue
	down   bool
}

type memoryValue struct {
	data     string
	deadline time.Time // zero = no expiry
}

// NewMemory constructs an in-memory store.
func NewMemory() *Memory {
	return &Memory{
		now:    time.Now,
		lists:  make(map[string][]string),
		values: make(map[string]memoryValue),
	}
}

// SetNow overrides the clock, for tests.
func (m *Memory) SetNow(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// SetDown makes every operation fail with ErrUnavailable, for tests.
func (m *Memory) SetDown(down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.down = down
}

// IncrCounter atomically increments a counter. Counters share the value
// keyspace so Get sees them, matching Redis INCR/GET semantics.
func (m *Memory) IncrCounter(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return 0, ErrUnavailable
	}
	var n int64
	if v, ok := m.values[key]; ok {
		if v.deadline.IsZero() || m.now().Before(v.deadline) {
			n, _ = strconv.ParseInt(v.data, 10, 64)
		}
	}
	n++
	m.values[key] = memoryValue{data: strconv.FormatInt(n, 10)}
	return n, nil
}

// AppendList appends a value to a list.
func (m *Memory) AppendList(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return ErrUnavailable
	}
	m.lists[key] = append(m.lists[key], value)
	return nil
}

// ListRange returns the full list in insertion order.
func (m *Memory) ListRange(ctx context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return nil, ErrUnavailable
	}
	list := m.lists[key]
	out := make([]string, len(list))
	copy(out, list)
	return out, nil
}

// Set stores a value with an optional TTL.
func (m *Memory) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return ErrUnavailable
	}
	v := memoryValue{data: value}
	if ttl > 0 {
		v.deadline = m.now().Add(ttl)
	}
	m.values[key] = v
	return nil
}

// Get retrieves a value, honoring expiry.
func (m *Memory) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return "", ErrUnavailable
	}
	v, ok := m.values[key]
	if !ok {
		return "", ErrNotFound
	}
	if !v.deadline.IsZero() && m.now().After(v.deadline) {
		delete(m.values, key)
		return "", ErrNotFound
	}
	return v.data, nil
}

// Expire sets a TTL on an existing value or list.
func (m *Memory) Expire(ctx context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return ErrUnavailable
	}
	if v, ok := m.values[key]; ok {
		v.deadline = m.now().Add(ttl)
		m.values[key] = v
	}
	// List expiry is the store's concern in production (Redis EXPIRE); the
	// in-memory variant keeps lists until process exit.
	return nil
}
