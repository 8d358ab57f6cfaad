package kvstore

import (
	"context"
	"sync"
	"time"
)

const memoryPollInterval = 10 * time.Millisecond

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// Memory is an in-process Backend. Expiry is evaluated lazily against an
// injectable clock so tests can move time forward.
type Memory struct {
	mu     sync.Mutex
	now    func() time.Time
	data   map[string]memoryEntry
	queues map[string][]string
	subs   map[string]map[chan string]struct{}
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithClock replaces time.Now as the expiry clock.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		now:    time.Now,
		data:   make(map[string]memoryEntry),
		queues: make(map[string][]string),
		subs:   make(map[string]map[chan string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Ping(ctx context.Context) error {
	return ctx.Err()
}

// lookup must be called with mu held.
func (m *Memory) lookup(key string) (memoryEntry, bool) {
	e, ok := m.data[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		delete(m.data, key)
		return memoryEntry{}, false
	}
	return e, true
}

func (m *Memory) entry(value string, ttl time.Duration) memoryEntry {
	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	return e
}

func (m *Memory) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.lookup(key); ok {
		return false, nil
	}
	m.data[key] = m.entry(value, ttl)
	return true, nil
}

func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = m.entry(value, ttl)
	return nil
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lookup(key)
	if !ok {
		return "", ErrMiss
	}
	return e.value, nil
}

func (m *Memory) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

// Publish drops the message for a subscriber whose buffer is full.
func (m *Memory) Publish(_ context.Context, channel string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for ch := range m.subs[channel] {
		select {
		case ch <- string(payload):
		default:
		}
	}
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, channel string) (<-chan string, func()) {
	ch := make(chan string, 16)

	m.mu.Lock()
	if m.subs[channel] == nil {
		m.subs[channel] = make(map[chan string]struct{})
	}
	m.subs[channel][ch] = struct{}{}
	m.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs[channel], ch)
			m.mu.Unlock()
			close(ch)
		})
	}

	go func() {
		<-ctx.Done()
		cancel()
	}()

	return ch, cancel
}

func (m *Memory) Push(_ context.Context, queue string, payloads ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.queues[queue] = append(m.queues[queue], payloads...)
	return nil
}

// Pop polls the queue until an item arrives, timeout elapses on the wall
// clock or ctx ends.
func (m *Memory) Pop(ctx context.Context, queue string, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	for {
		if item, ok := m.shift(queue); ok {
			return item, nil
		}
		if !time.Now().Before(deadline) {
			return "", ErrMiss
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(memoryPollInterval):
		}
	}
}

func (m *Memory) shift(queue string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := m.queues[queue]
	if len(q) == 0 {
		return "", false
	}
	item := q[0]
	m.queues[queue] = q[1:]
	return item, true
}

// Len reports the number of queued jobs.
func (m *Memory) Len(queue string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queues[queue])
}
