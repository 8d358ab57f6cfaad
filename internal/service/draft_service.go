package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/agep/exam-backend/internal/config"
	"github.com/agep/exam-backend/internal/kvstore"
	"github.com/agep/exam-backend/internal/model"
)

// DraftService keeps the transient per-student exam state: the start
// timestamp behind the countdown and the autosaved answer sheet.
type DraftService struct {
	kv  kvstore.Store
	ttl time.Duration
	now func() time.Time
	log zerolog.Logger
}

// NewDraftService creates a new DraftService. ttl bounds how long an
// abandoned draft survives.
func NewDraftService(kv kvstore.Store, ttl time.Duration, log zerolog.Logger) *DraftService {
	return &DraftService{
		kv:  kv,
		ttl: ttl,
		now: time.Now,
		log: log.With().Str("component", "draft_service").Logger(),
	}
}

// SaveDraft overwrites the autosaved sheet. Only authentication is required;
// eligibility is checked at submission. Returns the number of stored entries.
func (s *DraftService) SaveDraft(ctx context.Context, id Identity, examID uuid.UUID, raw map[string]any) (int, error) {
	if !id.Authenticated() {
		return 0, ErrUnauthenticated
	}

	sheet := SanitizeAnswers(raw, MaxDraftEntries)
	payload, err := json.Marshal(sheet)
	if err != nil {
		return 0, fmt.Errorf("encode draft: %w", err)
	}

	key := config.CacheKey.StudentDraftKey(examID.String(), id.UserID)
	if err := s.kv.Set(ctx, key, string(payload), s.ttl); err != nil {
		return 0, fmt.Errorf("%w: save draft: %w", ErrStorage, err)
	}
	return len(sheet), nil
}

// GetDraft returns the autosaved sheet, empty when none exists.
func (s *DraftService) GetDraft(ctx context.Context, studentID int, examID uuid.UUID) (model.AnswerSheet, error) {
	raw, err := s.kv.Get(ctx, config.CacheKey.StudentDraftKey(examID.String(), studentID))
	if errors.Is(err, kvstore.ErrMiss) {
		return model.AnswerSheet{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load draft: %w", ErrStorage, err)
	}

	sheet := model.AnswerSheet{}
	if err := json.Unmarshal([]byte(raw), &sheet); err != nil {
		s.log.Warn().Err(err).Int("student_id", studentID).Str("exam_id", examID.String()).
			Msg("Discarding unreadable draft")
		return model.AnswerSheet{}, nil
	}
	return sheet, nil
}

// GetOrStart records the start time on first call and reports the remaining
// seconds. Untimed exams never start a timer.
func (s *DraftService) GetOrStart(ctx context.Context, studentID int, examID uuid.UUID, durationMinutes int) (model.Timer, error) {
	if durationMinutes <= 0 {
		return model.Timer{Timed: false, RemainingSeconds: 0}, nil
	}

	key := config.CacheKey.StudentExamSessionStartKey(examID.String(), studentID)
	now := s.now().Unix()

	started, err := s.kv.SetNX(ctx, key, strconv.FormatInt(now, 10), s.ttl)
	if err != nil {
		return model.Timer{}, fmt.Errorf("%w: start timer: %w", ErrStorage, err)
	}

	start := now
	if !started {
		raw, err := s.kv.Get(ctx, key)
		switch {
		case errors.Is(err, kvstore.ErrMiss):
			// Expired between SETNX and GET; treat as a fresh start.
		case err != nil:
			return model.Timer{}, fmt.Errorf("%w: read timer: %w", ErrStorage, err)
		default:
			if start, err = strconv.ParseInt(raw, 10, 64); err != nil {
				return model.Timer{}, fmt.Errorf("invalid start time in store: %w", err)
			}
		}
	}

	remaining := start + int64(durationMinutes)*60 - now
	if remaining < 0 {
		remaining = 0
	}
	return model.Timer{Timed: true, RemainingSeconds: remaining}, nil
}

// Clear drops the draft and the start time after a successful submission.
func (s *DraftService) Clear(ctx context.Context, studentID int, examID uuid.UUID) error {
	return s.kv.Del(ctx, DraftKeys(studentID, examID)...)
}

// DraftKeys lists every transient key owned by one student and exam.
func DraftKeys(studentID int, examID uuid.UUID) []string {
	eid := examID.String()
	return []string{
		config.CacheKey.StudentDraftKey(eid, studentID),
		config.CacheKey.StudentExamSessionStartKey(eid, studentID),
	}
}

// Started reports whether the student has opened the exam or autosaved
// answers without submitting yet.
func (s *DraftService) Started(ctx context.Context, studentID int, examID uuid.UUID) (bool, error) {
	for _, key := range DraftKeys(studentID, examID) {
		_, err := s.kv.Get(ctx, key)
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, kvstore.ErrMiss) {
			return false, fmt.Errorf("%w: read draft state: %w", ErrStorage, err)
		}
	}
	return false, nil
}
