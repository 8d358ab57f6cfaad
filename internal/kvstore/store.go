// Package kvstore is the transient keyed store behind submission locks,
// in-progress drafts, the exam definition cache, the submissions feed and
// the cleanup queue. Redis backs it in production; Memory serves tests and
// single-process development.
package kvstore

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired, and by Pop
// when the wait elapses without an item.
var ErrMiss = errors.New("kvstore: miss")

// Store is a string keyed store with per-key expiry. A zero ttl means the key
// never expires.
type Store interface {
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// Broker fans out messages published on a channel to live subscribers.
type Broker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe delivers payloads until the returned cancel func is called or
	// ctx ends. The channel is closed afterwards.
	Subscribe(ctx context.Context, channel string) (<-chan string, func())
}

// Queue is a FIFO list of string jobs.
type Queue interface {
	Push(ctx context.Context, queue string, payloads ...string) error
	// Pop waits up to timeout for a job and returns ErrMiss when none arrives.
	Pop(ctx context.Context, queue string, timeout time.Duration) (string, error)
}

// Backend bundles the three capabilities a running server needs.
type Backend interface {
	Store
	Broker
	Queue
	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
}
