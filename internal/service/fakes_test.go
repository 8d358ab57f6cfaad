package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/agep/exam-backend/internal/kvstore"
	"github.com/agep/exam-backend/internal/model"
	"github.com/agep/exam-backend/internal/repository"
)

/* ---------------- In-memory fakes that satisfy ExamStore & AttemptStore ---------------- */

type fakeExamStore struct {
	mu      sync.Mutex
	exams   map[uuid.UUID]model.ExamDefinition
	gets    int
	failGet error
	// cascade receives the attempts of a deleted exam, like ON DELETE CASCADE.
	cascade *fakeAttemptStore
}

func newFakeExamStore(exams ...model.ExamDefinition) *fakeExamStore {
	s := &fakeExamStore{exams: map[uuid.UUID]model.ExamDefinition{}}
	for _, e := range exams {
		s.exams[e.ID] = e
	}
	return s
}

func (s *fakeExamStore) GetByID(_ context.Context, id uuid.UUID) (*model.ExamDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if s.failGet != nil {
		return nil, s.failGet
	}
	e, ok := s.exams[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &e, nil
}

func (s *fakeExamStore) ListByAuthor(_ context.Context, authorID, limit, offset int) ([]model.ExamDefinition, int, error) {
	all, _ := s.ListAll(context.Background())
	out := []model.ExamDefinition{}
	for _, e := range all {
		if authorID == 0 || e.AuthorID == authorID {
			out = append(out, e)
		}
	}
	total := len(out)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return out[offset:end], total, nil
}

func (s *fakeExamStore) ListAll(_ context.Context) ([]model.ExamDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ExamDefinition, 0, len(s.exams))
	for _, e := range s.exams {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (s *fakeExamStore) Create(_ context.Context, e *model.ExamDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = uuid.New()
	e.CreatedAt = time.Now()
	e.UpdatedAt = e.CreatedAt
	s.exams[e.ID] = *e
	return nil
}

func (s *fakeExamStore) Update(_ context.Context, e *model.ExamDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.exams[e.ID]; !ok {
		return pgx.ErrNoRows
	}
	e.UpdatedAt = time.Now()
	s.exams[e.ID] = *e
	return nil
}

func (s *fakeExamStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	if _, ok := s.exams[id]; !ok {
		s.mu.Unlock()
		return pgx.ErrNoRows
	}
	delete(s.exams, id)
	s.mu.Unlock()

	if s.cascade != nil {
		_, _ = s.cascade.DeleteByExam(ctx, id)
	}
	return nil
}

func (s *fakeExamStore) has(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.exams[id]
	return ok
}

type fakeAttemptStore struct {
	mu         sync.Mutex
	attempts   []model.Attempt
	failFind   error
	failInsert error
	// hideExisting makes FindByStudentAndExam miss, simulating a writer that
	// bypassed the lock.
	hideExisting bool
	insertDelay  time.Duration
	clock        time.Time
	// parents enforces the exam foreign key when set.
	parents *fakeExamStore
}

func newFakeAttemptStore() *fakeAttemptStore {
	return &fakeAttemptStore{clock: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

// references links the ledger to exams the way the attempts table does.
func (s *fakeAttemptStore) references(exams *fakeExamStore) {
	s.parents = exams
	exams.cascade = s
}

func (s *fakeAttemptStore) FindByStudentAndExam(_ context.Context, studentID int, examID uuid.UUID) (*model.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFind != nil {
		return nil, s.failFind
	}
	if s.hideExisting {
		return nil, nil
	}
	for _, a := range s.attempts {
		if a.StudentID == studentID && a.ExamID == examID {
			a := a
			return &a, nil
		}
	}
	return nil, nil
}

func (s *fakeAttemptStore) Insert(_ context.Context, a *model.Attempt) error {
	if s.insertDelay > 0 {
		time.Sleep(s.insertDelay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failInsert != nil {
		return s.failInsert
	}
	if s.parents != nil && !s.parents.has(a.ExamID) {
		return repository.ErrExamMissing
	}
	for _, existing := range s.attempts {
		if existing.StudentID == a.StudentID && existing.ExamID == a.ExamID {
			return repository.ErrDuplicateAttempt
		}
	}
	a.ID = uuid.New()
	s.clock = s.clock.Add(time.Minute)
	a.SubmittedAt = s.clock
	s.attempts = append(s.attempts, *a)
	return nil
}

func (s *fakeAttemptStore) GetByID(_ context.Context, id uuid.UUID) (*model.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.attempts {
		if a.ID == id {
			a := a
			return &a, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *fakeAttemptStore) ListByExam(_ context.Context, examID uuid.UUID) ([]model.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Attempt{}
	for _, a := range s.attempts {
		if a.ExamID == examID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	return out, nil
}

func (s *fakeAttemptStore) ListByStudent(_ context.Context, studentID int) ([]model.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Attempt{}
	for _, a := range s.attempts {
		if a.StudentID == studentID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *fakeAttemptStore) DeleteByExam(_ context.Context, examID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.attempts[:0]
	var removed int64
	for _, a := range s.attempts {
		if a.ExamID == examID {
			removed++
			continue
		}
		kept = append(kept, a)
	}
	s.attempts = kept
	return removed, nil
}

func (s *fakeAttemptStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.attempts)
}

/* ---------------- Keyed store wrapper with injectable failures ---------------- */

type flakyStore struct {
	kvstore.Store
	failDel   bool
	failSetNX bool
}

var errFlaky = errors.New("keyed store unavailable")

func (f *flakyStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if f.failSetNX {
		return false, errFlaky
	}
	return f.Store.SetNX(ctx, key, value, ttl)
}

func (f *flakyStore) Del(ctx context.Context, keys ...string) error {
	if f.failDel {
		return errFlaky
	}
	return f.Store.Del(ctx, keys...)
}

/* ---------------- Fixtures ---------------- */

func question(text, correct string) model.Question {
	return model.Question{
		Text:          text,
		Choices:       model.Choices{A: "one", B: "two", C: "three", D: "four"},
		CorrectChoice: correct,
	}
}

// twelveQuestionExam has keys a,b,c,d repeating.
func twelveQuestionExam(method model.ScoringMethod, roles ...string) model.ExamDefinition {
	keys := []string{"a", "b", "c", "d"}
	qs := make([]model.Question, 12)
	for i := range qs {
		qs[i] = question("Question", keys[i%4])
	}
	return model.ExamDefinition{
		ID:            uuid.New(),
		Title:         "Physics",
		AuthorID:      900,
		ScoringMethod: method,
		TargetRoles:   roles,
		Questions:     qs,
	}
}
