package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/agep/exam-backend/internal/config"
	"github.com/agep/exam-backend/internal/kvstore"
	"github.com/agep/exam-backend/internal/model"
)

// examTombstone marks a deleted exam so a reader holding the old row cannot
// fill the cache after the delete.
const examTombstone = "deleted"

// CachedExamStore serves exam definitions from the keyed store and falls
// back to the database on a miss. Fills only claim an empty key; writers
// overwrite it with the new definition or a tombstone, so a fill racing a
// write never wins. Two concurrent updates of one exam may leave either
// version cached until the TTL ends.
type CachedExamStore struct {
	ExamStore
	kv  kvstore.Store
	ttl time.Duration
	log zerolog.Logger
}

// NewCachedExamStore wraps next with a read-through cache.
func NewCachedExamStore(next ExamStore, kv kvstore.Store, ttl time.Duration, log zerolog.Logger) *CachedExamStore {
	return &CachedExamStore{
		ExamStore: next,
		kv:        kv,
		ttl:       ttl,
		log:       log.With().Str("component", "exam_cache").Logger(),
	}
}

func (c *CachedExamStore) GetByID(ctx context.Context, id uuid.UUID) (*model.ExamDefinition, error) {
	key := config.CacheKey.ExamDefinitionKey(id.String())

	raw, err := c.kv.Get(ctx, key)
	switch {
	case err == nil && raw == examTombstone:
		return nil, pgx.ErrNoRows
	case err == nil:
		exam := &model.ExamDefinition{}
		if jsonErr := json.Unmarshal([]byte(raw), exam); jsonErr == nil {
			return exam, nil
		}
		c.log.Warn().Str("exam_id", id.String()).Msg("Dropping undecodable cached exam")
		c.invalidate(ctx, id)
	case !errors.Is(err, kvstore.ErrMiss):
		c.log.Warn().Err(err).Str("exam_id", id.String()).Msg("Exam cache read failed")
	}

	exam, err := c.ExamStore.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(exam); err == nil {
		if _, err := c.kv.SetNX(ctx, key, string(payload), c.ttl); err != nil {
			c.log.Warn().Err(err).Str("exam_id", id.String()).Msg("Exam cache write failed")
		}
	}
	return exam, nil
}

func (c *CachedExamStore) Update(ctx context.Context, e *model.ExamDefinition) error {
	if err := c.ExamStore.Update(ctx, e); err != nil {
		return err
	}
	payload, err := json.Marshal(e)
	if err != nil {
		c.invalidate(ctx, e.ID)
		return nil
	}
	c.replace(ctx, e.ID, string(payload))
	return nil
}

func (c *CachedExamStore) Delete(ctx context.Context, id uuid.UUID) error {
	if err := c.ExamStore.Delete(ctx, id); err != nil {
		return err
	}
	c.replace(ctx, id, examTombstone)
	return nil
}

func (c *CachedExamStore) replace(ctx context.Context, id uuid.UUID, value string) {
	err := c.kv.Set(ctx, config.CacheKey.ExamDefinitionKey(id.String()), value, c.ttl)
	if err == nil {
		return
	}
	c.log.Warn().Err(err).Str("exam_id", id.String()).Msg("Exam cache write failed, invalidating")
	c.invalidate(ctx, id)
}

func (c *CachedExamStore) invalidate(ctx context.Context, id uuid.UUID) {
	if err := c.kv.Del(ctx, config.CacheKey.ExamDefinitionKey(id.String())); err != nil {
		c.log.Warn().Err(err).Str("exam_id", id.String()).Msg("Exam cache invalidation failed")
	}
}
