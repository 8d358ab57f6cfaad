package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/agep/exam-backend/internal/config"
	"github.com/agep/exam-backend/internal/grading"
	"github.com/agep/exam-backend/internal/kvstore"
	"github.com/agep/exam-backend/internal/lock"
	"github.com/agep/exam-backend/internal/model"
	"github.com/agep/exam-backend/internal/repository"
)

// SubmissionResult references the stored attempt.
type SubmissionResult struct {
	AttemptID uuid.UUID    `json:"attempt_id"`
	Counts    model.Counts `json:"counts"`
	NetScore  float64      `json:"net_score"`
}

// SubmissionService scores and records exam submissions.
type SubmissionService struct {
	exams    ExamLoader
	attempts AttemptStore
	locks    *lock.Manager
	drafts   *DraftService
	events   kvstore.Broker
	cleanup  kvstore.Queue
	lockTTL  time.Duration
	log      zerolog.Logger
}

// NewSubmissionService creates a new SubmissionService. events and cleanup
// may be nil, which disables the live feed and the cleanup retry queue.
func NewSubmissionService(
	exams ExamLoader,
	attempts AttemptStore,
	locks *lock.Manager,
	drafts *DraftService,
	events kvstore.Broker,
	cleanup kvstore.Queue,
	lockTTL time.Duration,
	log zerolog.Logger,
) *SubmissionService {
	return &SubmissionService{
		exams:    exams,
		attempts: attempts,
		locks:    locks,
		drafts:   drafts,
		events:   events,
		cleanup:  cleanup,
		lockTTL:  lockTTL,
		log:      log.With().Str("component", "submission_service").Logger(),
	}
}

// Submit scores raw against the exam and records the attempt. The whole
// check-then-insert sequence runs under the per-student submission lock.
func (s *SubmissionService) Submit(ctx context.Context, id Identity, examID uuid.UUID, raw map[string]any) (*SubmissionResult, error) {
	if !id.Authenticated() {
		return nil, ErrUnauthenticated
	}

	var (
		result  *SubmissionResult
		attempt *model.Attempt
		entered bool
	)
	err := s.locks.WithLock(ctx, lock.Key(id.UserID, examID), s.lockTTL, func(ctx context.Context) error {
		entered = true
		var err error
		attempt, err = s.score(ctx, id, examID, raw)
		if err != nil {
			return err
		}
		s.clearDraft(ctx, id.UserID, examID)
		result = &SubmissionResult{AttemptID: attempt.ID, Counts: attempt.Counts(), NetScore: attempt.NetScore}
		return nil
	})
	switch {
	case errors.Is(err, lock.ErrHeld):
		return nil, ErrOperationInProgress
	case err != nil && !entered:
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	case err != nil:
		return nil, err
	}

	s.publish(ctx, attempt)

	s.log.Info().
		Int("student_id", id.UserID).
		Str("exam_id", examID.String()).
		Str("attempt_id", attempt.ID.String()).
		Float64("net_score", attempt.NetScore).
		Msg("Attempt recorded")

	return result, nil
}

func (s *SubmissionService) score(ctx context.Context, id Identity, examID uuid.UUID, raw map[string]any) (*model.Attempt, error) {
	existing, err := s.attempts.FindByStudentAndExam(ctx, id.UserID, examID)
	if err != nil {
		return nil, fmt.Errorf("%w: find attempt: %w", ErrStorage, err)
	}
	if existing != nil {
		return nil, ErrAlreadySubmitted
	}

	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: load exam: %w", ErrStorage, err)
	}
	if !exam.AdmitsRoles(id.Roles) {
		return nil, ErrForbidden
	}

	sheet := SanitizeAnswers(raw, len(exam.Questions))
	counts, recorded := ScoreSheet(exam.Questions, sheet)

	attempt := &model.Attempt{
		StudentID:      id.UserID,
		ExamID:         examID,
		CorrectCount:   counts.Correct,
		IncorrectCount: counts.Incorrect,
		BlankCount:     counts.Blank,
		NetScore:       grading.NetScore(string(exam.ScoringMethod), counts.Correct, counts.Incorrect),
		Answers:        recorded,
	}

	if err := s.attempts.Insert(ctx, attempt); err != nil {
		if errors.Is(err, repository.ErrDuplicateAttempt) {
			return nil, ErrAlreadySubmitted
		}
		if errors.Is(err, repository.ErrExamMissing) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: insert attempt: %w", ErrStorage, err)
	}
	return attempt, nil
}

// clearDraft never fails the submission. A failed clear is queued for the
// cleanup worker when the queue is enabled.
func (s *SubmissionService) clearDraft(ctx context.Context, studentID int, examID uuid.UUID) {
	err := s.drafts.Clear(ctx, studentID, examID)
	if err == nil {
		return
	}

	s.log.Warn().Err(err).Int("student_id", studentID).Str("exam_id", examID.String()).
		Msg("Draft cleanup failed after submission")

	if s.cleanup == nil {
		return
	}
	job, _ := json.Marshal(model.DraftCleanupJob{StudentID: studentID, ExamID: examID})
	if err := s.cleanup.Push(context.WithoutCancel(ctx), config.WorkerKey.DraftCleanupQueue, string(job)); err != nil {
		s.log.Error().Err(err).Int("student_id", studentID).Str("exam_id", examID.String()).
			Msg("Could not queue draft cleanup, keys will expire by TTL")
	}
}

func (s *SubmissionService) publish(ctx context.Context, a *model.Attempt) {
	if s.events == nil {
		return
	}
	payload, err := json.Marshal(model.SubmissionEvent{
		Type:        model.SubmissionEventSubmitted,
		ExamID:      a.ExamID,
		StudentID:   a.StudentID,
		AttemptID:   a.ID,
		Counts:      a.Counts(),
		NetScore:    a.NetScore,
		SubmittedAt: a.SubmittedAt,
	})
	if err != nil {
		return
	}
	if err := s.events.Publish(ctx, config.CacheKey.ExamSubmissionsChannel(a.ExamID.String()), payload); err != nil {
		s.log.Warn().Err(err).Str("exam_id", a.ExamID.String()).Msg("Failed to publish submission event")
	}
}
