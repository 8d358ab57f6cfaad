package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agep/exam-backend/internal/config"
	"github.com/agep/exam-backend/internal/kvstore"
	"github.com/agep/exam-backend/internal/lock"
	"github.com/agep/exam-backend/internal/model"
)

type submitFixture struct {
	exams    *fakeExamStore
	attempts *fakeAttemptStore
	kv       *kvstore.Memory
	flaky    *flakyStore
	drafts   *DraftService
	locks    *lock.Manager
	svc      *SubmissionService
}

func newSubmitFixture(exams ...model.ExamDefinition) *submitFixture {
	f := &submitFixture{
		exams:    newFakeExamStore(exams...),
		attempts: newFakeAttemptStore(),
		kv:       kvstore.NewMemory(),
	}
	f.attempts.references(f.exams)
	f.flaky = &flakyStore{Store: f.kv}
	f.drafts = NewDraftService(f.flaky, 72*time.Hour, zerolog.Nop())
	f.locks = lock.NewManager(f.flaky)
	f.svc = NewSubmissionService(f.exams, f.attempts, f.locks, f.drafts, f.kv, f.kv, lock.DefaultTTL, zerolog.Nop())
	return f
}

var student = Identity{UserID: 41, Roles: []string{RoleStudent, "grade-10"}}

// sixFourTwo answers a twelve-question exam with 6 correct, 4 wrong, 2 blank.
func sixFourTwo() map[string]any {
	return map[string]any{
		"0": "a", "1": "b", "2": "c", "3": "d", "4": "a", "5": "b",
		"6": "a", "7": "a", "8": "b", "9": "a",
		"10": "blank",
	}
}

func TestSubmitNetScore(t *testing.T) {
	exam := twelveQuestionExam(model.ScoringNet)
	f := newSubmitFixture(exam)

	res, err := f.svc.Submit(context.Background(), student, exam.ID, sixFourTwo())

	require.NoError(t, err)
	assert.Equal(t, model.Counts{Correct: 6, Incorrect: 4, Blank: 2}, res.Counts)
	assert.Equal(t, 5.0, res.NetScore)
	assert.NotEqual(t, uuid.Nil, res.AttemptID)

	stored, err := f.attempts.GetByID(context.Background(), res.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, 41, stored.StudentID)
	assert.Equal(t, 5.0, stored.NetScore)
	assert.Len(t, stored.Answers, 12)
	assert.Equal(t, model.BlankAnswer, stored.Answers[11])
}

func TestSubmitStandardScore(t *testing.T) {
	exam := twelveQuestionExam(model.ScoringStandard)
	f := newSubmitFixture(exam)

	res, err := f.svc.Submit(context.Background(), student, exam.ID, sixFourTwo())

	require.NoError(t, err)
	assert.Equal(t, 6.0, res.NetScore)
}

func TestSubmitSkipsQuestionsWithoutText(t *testing.T) {
	exam := model.ExamDefinition{
		ID:            uuid.New(),
		ScoringMethod: model.ScoringStandard,
		Questions: []model.Question{
			question("Q1", "a"),
			question("Q2", "b"),
			question("", "c"),
			question("Q4", "d"),
			question("Q5", "e"),
		},
	}
	f := newSubmitFixture(exam)

	res, err := f.svc.Submit(context.Background(), student, exam.ID, map[string]any{"0": "a", "2": "c", "3": "a"})

	require.NoError(t, err)
	assert.Equal(t, 4, res.Counts.Total())
	assert.Equal(t, model.Counts{Correct: 1, Incorrect: 1, Blank: 2}, res.Counts)
}

func TestSubmitIsCaseInsensitive(t *testing.T) {
	exam := model.ExamDefinition{
		ID:            uuid.New(),
		ScoringMethod: model.ScoringStandard,
		Questions:     []model.Question{question("Q1", "c")},
	}
	f := newSubmitFixture(exam)

	res, err := f.svc.Submit(context.Background(), student, exam.ID, map[string]any{"0": "C"})

	require.NoError(t, err)
	assert.Equal(t, 1, res.Counts.Correct)
}

func TestSubmitToleratesMalformedPayload(t *testing.T) {
	exam := model.ExamDefinition{
		ID:            uuid.New(),
		ScoringMethod: model.ScoringNet,
		Questions:     []model.Question{question("Q1", "a"), question("Q2", "b"), question("Q3", "c")},
	}
	f := newSubmitFixture(exam)

	res, err := f.svc.Submit(context.Background(), student, exam.ID, map[string]any{
		"0":     42.0,
		"1":     []any{"b"},
		"2":     " C ",
		"3":     "a",
		"-1":    "a",
		"first": "a",
	})

	require.NoError(t, err)
	assert.Equal(t, model.Counts{Correct: 1, Blank: 2}, res.Counts)

	stored, err := f.attempts.GetByID(context.Background(), res.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, model.AnswerSheet{0: "blank", 1: "blank", 2: "c"}, stored.Answers)
}

func TestSanitizeAnswersRequiresCanonicalKeys(t *testing.T) {
	raw := map[string]any{
		"1":  "b",
		"01": "a",
		"+1": "c",
		" 2": "a",
		"2 ": "a",
		"0":  "A",
	}

	// Repeat to cover map iteration order.
	for range 20 {
		assert.Equal(t, model.AnswerSheet{0: "a", 1: "b"}, SanitizeAnswers(raw, 3))
	}
}

func TestSubmitEmptyExam(t *testing.T) {
	exam := model.ExamDefinition{ID: uuid.New(), ScoringMethod: model.ScoringNet}
	f := newSubmitFixture(exam)

	res, err := f.svc.Submit(context.Background(), student, exam.ID, map[string]any{"0": "a"})

	require.NoError(t, err)
	assert.Equal(t, model.Counts{}, res.Counts)
	assert.Equal(t, 0.0, res.NetScore)
}

func TestSubmitTwiceIsRejected(t *testing.T) {
	exam := twelveQuestionExam(model.ScoringNet)
	f := newSubmitFixture(exam)
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, student, exam.ID, sixFourTwo())
	require.NoError(t, err)

	_, err = f.svc.Submit(ctx, student, exam.ID, map[string]any{"0": "d"})
	assert.ErrorIs(t, err, ErrAlreadySubmitted)
	_, err = f.svc.Submit(ctx, student, exam.ID, nil)
	assert.ErrorIs(t, err, ErrAlreadySubmitted)
	assert.Equal(t, 1, f.attempts.count())
}

func TestSubmitUniqueConstraintMapsToAlreadySubmitted(t *testing.T) {
	exam := twelveQuestionExam(model.ScoringNet)
	f := newSubmitFixture(exam)
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, student, exam.ID, sixFourTwo())
	require.NoError(t, err)

	f.attempts.hideExisting = true
	_, err = f.svc.Submit(ctx, student, exam.ID, sixFourTwo())
	assert.ErrorIs(t, err, ErrAlreadySubmitted)
	assert.Equal(t, 1, f.attempts.count())
}

func TestConcurrentSubmitsRecordOneAttempt(t *testing.T) {
	exam := twelveQuestionExam(model.ScoringNet)
	f := newSubmitFixture(exam)
	f.attempts.insertDelay = 20 * time.Millisecond

	const callers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		outcomes  []error
	)
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.svc.Submit(context.Background(), student, exam.ID, sixFourTwo())
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
				return
			}
			outcomes = append(outcomes, err)
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, f.attempts.count())
	for _, err := range outcomes {
		assert.True(t, errors.Is(err, ErrOperationInProgress) || errors.Is(err, ErrAlreadySubmitted), "unexpected error: %v", err)
	}
}

func TestSubmitWhileLockHeld(t *testing.T) {
	exam := twelveQuestionExam(model.ScoringNet)
	f := newSubmitFixture(exam)
	ctx := context.Background()

	ok, err := f.locks.Acquire(ctx, lock.Key(student.UserID, exam.ID), lock.DefaultTTL)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.svc.Submit(ctx, student, exam.ID, sixFourTwo())
	assert.ErrorIs(t, err, ErrOperationInProgress)
	assert.Equal(t, 0, f.attempts.count())

	// Another student is not affected.
	_, err = f.svc.Submit(ctx, Identity{UserID: 42}, exam.ID, sixFourTwo())
	assert.NoError(t, err)
}

func TestSubmitFailures(t *testing.T) {
	ctx := context.Background()
	dbDown := errors.New("connection refused")

	tests := []struct {
		name    string
		id      Identity
		exam    model.ExamDefinition
		examID  func(e model.ExamDefinition) uuid.UUID
		prepare func(f *submitFixture)
		wantErr error
		cause   error
	}{
		{
			name:    "unauthenticated",
			id:      Identity{},
			exam:    twelveQuestionExam(model.ScoringNet),
			wantErr: ErrUnauthenticated,
		},
		{
			name:    "role mismatch",
			id:      student,
			exam:    twelveQuestionExam(model.ScoringNet, "grade-11"),
			wantErr: ErrForbidden,
		},
		{
			name:    "unknown exam",
			id:      student,
			exam:    twelveQuestionExam(model.ScoringNet),
			examID:  func(model.ExamDefinition) uuid.UUID { return uuid.New() },
			wantErr: ErrNotFound,
		},
		{
			name:    "insert fails",
			id:      student,
			exam:    twelveQuestionExam(model.ScoringNet),
			prepare: func(f *submitFixture) { f.attempts.failInsert = dbDown },
			wantErr: ErrStorage,
			cause:   dbDown,
		},
		{
			name:    "find fails",
			id:      student,
			exam:    twelveQuestionExam(model.ScoringNet),
			prepare: func(f *submitFixture) { f.attempts.failFind = dbDown },
			wantErr: ErrStorage,
			cause:   dbDown,
		},
		{
			name:    "exam load fails",
			id:      student,
			exam:    twelveQuestionExam(model.ScoringNet),
			prepare: func(f *submitFixture) { f.exams.failGet = dbDown },
			wantErr: ErrStorage,
			cause:   dbDown,
		},
		{
			name:    "lock store fails",
			id:      student,
			exam:    twelveQuestionExam(model.ScoringNet),
			prepare: func(f *submitFixture) { f.flaky.failSetNX = true },
			wantErr: ErrStorage,
			cause:   errFlaky,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newSubmitFixture(tc.exam)
			if tc.prepare != nil {
				tc.prepare(f)
			}
			examID := tc.exam.ID
			if tc.examID != nil {
				examID = tc.examID(tc.exam)
			}

			_, err := f.drafts.SaveDraft(ctx, Identity{UserID: 41}, examID, map[string]any{"0": "a"})
			require.NoError(t, err)

			res, err := f.svc.Submit(ctx, tc.id, examID, sixFourTwo())

			assert.Nil(t, res)
			assert.ErrorIs(t, err, tc.wantErr)
			if tc.cause != nil {
				assert.ErrorIs(t, err, tc.cause)
			}
			assert.Equal(t, 0, f.attempts.count())

			// Lock released and draft preserved on every failure.
			f.flaky.failSetNX = false
			ok, err := f.locks.Acquire(ctx, lock.Key(41, examID), lock.DefaultTTL)
			require.NoError(t, err)
			assert.True(t, ok)

			draft, err := f.drafts.GetDraft(ctx, 41, examID)
			require.NoError(t, err)
			assert.Equal(t, model.AnswerSheet{0: "a"}, draft)
		})
	}
}

func TestSubmitClearsDraftAndPublishes(t *testing.T) {
	exam := twelveQuestionExam(model.ScoringNet)
	f := newSubmitFixture(exam)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := f.drafts.SaveDraft(ctx, student, exam.ID, map[string]any{"0": "a"})
	require.NoError(t, err)
	_, err = f.drafts.GetOrStart(ctx, student.UserID, exam.ID, 30)
	require.NoError(t, err)

	feed, unsubscribe := f.kv.Subscribe(ctx, config.CacheKey.ExamSubmissionsChannel(exam.ID.String()))
	defer unsubscribe()

	res, err := f.svc.Submit(ctx, student, exam.ID, sixFourTwo())
	require.NoError(t, err)

	started, err := f.drafts.Started(ctx, student.UserID, exam.ID)
	require.NoError(t, err)
	assert.False(t, started)

	select {
	case msg := <-feed:
		var ev model.SubmissionEvent
		require.NoError(t, json.Unmarshal([]byte(msg), &ev))
		assert.Equal(t, model.SubmissionEventSubmitted, ev.Type)
		assert.Equal(t, res.AttemptID, ev.AttemptID)
		assert.Equal(t, 5.0, ev.NetScore)
	case <-time.After(time.Second):
		t.Fatal("submission event not published")
	}
}

func TestSubmitSurvivesCleanupFailure(t *testing.T) {
	exam := twelveQuestionExam(model.ScoringNet)
	f := newSubmitFixture(exam)
	f.flaky.failDel = true
	ctx := context.Background()

	_, err := f.drafts.SaveDraft(ctx, student, exam.ID, map[string]any{"0": "a"})
	require.NoError(t, err)

	res, err := f.svc.Submit(ctx, student, exam.ID, sixFourTwo())
	require.NoError(t, err)
	assert.Equal(t, 5.0, res.NetScore)

	require.Equal(t, 1, f.kv.Len(config.WorkerKey.DraftCleanupQueue))
	raw, err := f.kv.Pop(ctx, config.WorkerKey.DraftCleanupQueue, time.Second)
	require.NoError(t, err)

	var job model.DraftCleanupJob
	require.NoError(t, json.Unmarshal([]byte(raw), &job))
	assert.Equal(t, student.UserID, job.StudentID)
	assert.Equal(t, exam.ID, job.ExamID)
}
