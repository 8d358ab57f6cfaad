package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/agep/exam-backend/internal/config"
	"github.com/agep/exam-backend/internal/kvstore"
	"github.com/agep/exam-backend/internal/model"
	"github.com/agep/exam-backend/internal/service"
)

const (
	CleanupBatchSize    = 50
	CleanupBatchTimeout = 2 * time.Second
	CleanupPollTimeout  = 1 * time.Second
	// CleanupMaxAttempts bounds requeues; after that the keys' own TTL wins.
	CleanupMaxAttempts = 5
)

// DraftCleanupWorker retries draft and timer deletion that failed inline
// after a successful submission.
type DraftCleanupWorker struct {
	store kvstore.Store
	queue kvstore.Queue
	log   zerolog.Logger
}

func NewDraftCleanupWorker(store kvstore.Store, queue kvstore.Queue, log zerolog.Logger) *DraftCleanupWorker {
	return &DraftCleanupWorker{
		store: store,
		queue: queue,
		log:   log.With().Str("component", "draft_cleanup_worker").Logger(),
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

// Start consumes the cleanup queue until ctx ends, then flushes what it holds.
func (w *DraftCleanupWorker) Start(ctx context.Context) {
	w.log.Info().Msg("DraftCleanupWorker started")

	batch := make([]model.DraftCleanupJob, 0, CleanupBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= CleanupBatchSize || time.Since(lastFlush) >= CleanupBatchTimeout) {

			w.flush(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Int("pending", len(batch)).Msg("Shutdown requested. Flushing remaining batch...")
			w.flush(context.Background(), batch)
			return

		default:
			item, err := w.queue.Pop(ctx, config.WorkerKey.DraftCleanupQueue, CleanupPollTimeout)
			if err != nil {
				if !errors.Is(err, kvstore.ErrMiss) && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("Queue pop error")
				}
				continue
			}

			var job model.DraftCleanupJob
			if err := json.Unmarshal([]byte(item), &job); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}
			batch = append(batch, job)
		}
	}
}

// ----------------------------------------------------------------
// Batch DEL with per-job fallback
// ----------------------------------------------------------------

func (w *DraftCleanupWorker) flush(ctx context.Context, batch []model.DraftCleanupJob) {
	if len(batch) == 0 {
		return
	}

	keys := make([]string, 0, len(batch)*2)
	for _, job := range batch {
		keys = append(keys, service.DraftKeys(job.StudentID, job.ExamID)...)
	}

	err := w.store.Del(ctx, keys...)
	if err == nil {
		w.log.Debug().Int("jobs", len(batch)).Msg("Draft cleanup batch flushed")
		return
	}
	w.log.Warn().Err(err).Int("jobs", len(batch)).Msg("Bulk draft cleanup failed, retrying per job")

	for _, job := range batch {
		if err := w.store.Del(ctx, service.DraftKeys(job.StudentID, job.ExamID)...); err == nil {
			continue
		}
		w.requeue(ctx, job)
	}
}

func (w *DraftCleanupWorker) requeue(ctx context.Context, job model.DraftCleanupJob) {
	job.Attempts++
	if job.Attempts >= CleanupMaxAttempts {
		w.log.Error().Int("student_id", job.StudentID).Str("exam_id", job.ExamID.String()).
			Msg("Giving up on draft cleanup, keys will expire by TTL")
		return
	}

	raw, _ := json.Marshal(job)
	if err := w.queue.Push(ctx, config.WorkerKey.DraftCleanupQueue, string(raw)); err != nil {
		w.log.Error().Err(err).Int("student_id", job.StudentID).Str("exam_id", job.ExamID.String()).
			Msg("Requeue of draft cleanup failed")
	}
}
