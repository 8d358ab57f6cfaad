// Package lock provides the short-lived, non-blocking submission lock that
// serializes submit processing for one student and exam.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agep/exam-backend/internal/config"
	"github.com/agep/exam-backend/internal/kvstore"
)

// DefaultTTL bounds how long an abandoned lock blocks resubmission.
const DefaultTTL = 45 * time.Second

const releaseTimeout = 3 * time.Second

// ErrHeld is returned by WithLock when another holder owns the key.
var ErrHeld = errors.New("lock: already held")

// Manager acquires and releases locks in a keyed store.
type Manager struct {
	store kvstore.Store
}

func NewManager(store kvstore.Store) *Manager {
	return &Manager{store: store}
}

// Key is the lock key for one student and exam.
func Key(studentID int, examID uuid.UUID) string {
	return config.CacheKey.SubmitLockKey(examID.String(), studentID)
}

// Acquire makes a single attempt to take key. It reports false when the key
// is held and unexpired. It never waits.
func (m *Manager) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	ok, err := m.store.SetNX(ctx, key, "1", ttl)
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", key, err)
	}
	return ok, nil
}

// Release drops key. Releasing an expired or never-held key is a no-op.
func (m *Manager) Release(ctx context.Context, key string) error {
	if err := m.store.Del(ctx, key); err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}

// WithLock runs fn while holding key and releases it on every exit path,
// panics included. Release runs on a context detached from ctx so a cancelled
// caller still frees the key. A failed release is left to the TTL.
func (m *Manager) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error {
	ok, err := m.Acquire(ctx, key, ttl)
	if err != nil {
		return err
	}
	if !ok {
		return ErrHeld
	}

	defer func() {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		_ = m.Release(rctx, key)
	}()

	return fn(ctx)
}
