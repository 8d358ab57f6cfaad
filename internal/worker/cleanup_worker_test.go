package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agep/exam-backend/internal/config"
	"github.com/agep/exam-backend/internal/kvstore"
	"github.com/agep/exam-backend/internal/model"
	"github.com/agep/exam-backend/internal/service"
)

type brokenDel struct {
	kvstore.Store
}

func (brokenDel) Del(context.Context, ...string) error { return errors.New("down") }

func pushJob(t *testing.T, q kvstore.Queue, job model.DraftCleanupJob) {
	t.Helper()
	raw, err := json.Marshal(job)
	require.NoError(t, err)
	require.NoError(t, q.Push(context.Background(), config.WorkerKey.DraftCleanupQueue, string(raw)))
}

func TestDraftCleanupWorkerDeletesKeys(t *testing.T) {
	kv := kvstore.NewMemory()
	examID := uuid.New()
	bg := context.Background()

	for _, key := range service.DraftKeys(7, examID) {
		require.NoError(t, kv.Set(bg, key, "x", time.Hour))
	}
	pushJob(t, kv, model.DraftCleanupJob{StudentID: 7, ExamID: examID})

	ctx, cancel := context.WithCancel(bg)
	done := make(chan struct{})
	go func() {
		NewDraftCleanupWorker(kv, kv, zerolog.Nop()).Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return kv.Len(config.WorkerKey.DraftCleanupQueue) == 0 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done

	for _, key := range service.DraftKeys(7, examID) {
		_, err := kv.Get(bg, key)
		assert.ErrorIs(t, err, kvstore.ErrMiss)
	}
}

func TestDraftCleanupWorkerRequeuesThenGivesUp(t *testing.T) {
	kv := kvstore.NewMemory()
	w := NewDraftCleanupWorker(brokenDel{kv}, kv, zerolog.Nop())
	examID := uuid.New()
	ctx := context.Background()

	w.flush(ctx, []model.DraftCleanupJob{{StudentID: 7, ExamID: examID, Attempts: 1}})

	raw, err := kv.Pop(ctx, config.WorkerKey.DraftCleanupQueue, time.Second)
	require.NoError(t, err)
	var job model.DraftCleanupJob
	require.NoError(t, json.Unmarshal([]byte(raw), &job))
	assert.Equal(t, 2, job.Attempts)

	w.flush(ctx, []model.DraftCleanupJob{{StudentID: 7, ExamID: examID, Attempts: CleanupMaxAttempts - 1}})
	assert.Equal(t, 0, kv.Len(config.WorkerKey.DraftCleanupQueue))
}
