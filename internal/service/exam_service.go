package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/agep/exam-backend/internal/model"
	"github.com/agep/exam-backend/internal/response"
)

// ExamService handles exam authoring for instructors and administrators.
type ExamService struct {
	exams    ExamStore
	attempts AttemptStore
	log      zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(exams ExamStore, attempts AttemptStore, log zerolog.Logger) *ExamService {
	return &ExamService{
		exams:    exams,
		attempts: attempts,
		log:      log.With().Str("component", "exam_service").Logger(),
	}
}

// Get returns the full definition, answer keys included.
func (s *ExamService) Get(ctx context.Context, id Identity, examID uuid.UUID) (*model.ExamDefinition, error) {
	if err := requireStaff(id); err != nil {
		return nil, err
	}
	return s.load(ctx, examID)
}

// List returns a page of exams. Instructors see their own, administrators
// see every exam.
func (s *ExamService) List(ctx context.Context, id Identity, page, perPage int) ([]model.ExamSummary, *response.Pagination, error) {
	if err := requireStaff(id); err != nil {
		return nil, nil, err
	}

	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}

	authorID := id.UserID
	if id.IsAdministrator() {
		authorID = 0
	}

	exams, total, err := s.exams.ListByAuthor(ctx, authorID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: list exams: %w", ErrStorage, err)
	}

	summaries := make([]model.ExamSummary, len(exams))
	for i := range exams {
		summaries[i] = exams[i].Summary()
	}

	return summaries, response.NewPagination(page, perPage, total), nil
}

// Create stores a new exam authored by the caller.
func (s *ExamService) Create(ctx context.Context, id Identity, req *model.SaveExamRequest) (*model.ExamDefinition, error) {
	if err := requireStaff(id); err != nil {
		return nil, err
	}

	exam := &model.ExamDefinition{AuthorID: id.UserID}
	applyExamRequest(exam, req)

	if err := s.exams.Create(ctx, exam); err != nil {
		return nil, fmt.Errorf("%w: create exam: %w", ErrStorage, err)
	}

	s.log.Info().Str("exam_id", exam.ID.String()).Int("author_id", id.UserID).
		Int("questions", len(exam.Questions)).Msg("Exam created")
	return exam, nil
}

// Update replaces the exam's content. Only the author or an administrator
// may change an exam.
func (s *ExamService) Update(ctx context.Context, id Identity, examID uuid.UUID, req *model.SaveExamRequest) (*model.ExamDefinition, error) {
	exam, err := s.loadOwned(ctx, id, examID)
	if err != nil {
		return nil, err
	}

	applyExamRequest(exam, req)
	if err := s.exams.Update(ctx, exam); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: update exam: %w", ErrStorage, err)
	}

	s.log.Info().Str("exam_id", exam.ID.String()).Int("editor_id", id.UserID).Msg("Exam updated")
	return exam, nil
}

// Delete removes the exam's attempts and then the exam itself. An attempt
// inserted between the two statements goes with the exam row through the
// cascading foreign key.
func (s *ExamService) Delete(ctx context.Context, id Identity, examID uuid.UUID) error {
	if _, err := s.loadOwned(ctx, id, examID); err != nil {
		return err
	}

	removed, err := s.attempts.DeleteByExam(ctx, examID)
	if err != nil {
		return fmt.Errorf("%w: delete attempts: %w", ErrStorage, err)
	}
	if err := s.exams.Delete(ctx, examID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: delete exam: %w", ErrStorage, err)
	}

	s.log.Info().Str("exam_id", examID.String()).Int64("attempts_removed", removed).
		Int("editor_id", id.UserID).Msg("Exam deleted")
	return nil
}

// Owned returns the exam if the caller may manage it: its author or an
// administrator.
func (s *ExamService) Owned(ctx context.Context, id Identity, examID uuid.UUID) (*model.ExamDefinition, error) {
	return s.loadOwned(ctx, id, examID)
}

func (s *ExamService) load(ctx context.Context, examID uuid.UUID) (*model.ExamDefinition, error) {
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: load exam: %w", ErrStorage, err)
	}
	return exam, nil
}

func (s *ExamService) loadOwned(ctx context.Context, id Identity, examID uuid.UUID) (*model.ExamDefinition, error) {
	if err := requireStaff(id); err != nil {
		return nil, err
	}
	exam, err := s.load(ctx, examID)
	if err != nil {
		return nil, err
	}
	if !canManage(id, exam) {
		return nil, ErrNotExamAuthor
	}
	return exam, nil
}

func requireStaff(id Identity) error {
	if !id.Authenticated() {
		return ErrUnauthenticated
	}
	if !id.IsStaff() {
		return ErrInstructorOnly
	}
	return nil
}

func canManage(id Identity, exam *model.ExamDefinition) bool {
	return id.IsAdministrator() || exam.AuthorID == id.UserID
}

// applyExamRequest copies req onto exam. Rows without question text are
// dropped and correct choices are lowercased.
func applyExamRequest(exam *model.ExamDefinition, req *model.SaveExamRequest) {
	exam.Title = strings.TrimSpace(req.Title)
	exam.Description = req.Description
	exam.DurationMinutes = req.DurationMinutes

	exam.ScoringMethod = model.ScoringMethod(strings.ToLower(req.ScoringMethod))
	if !exam.ScoringMethod.Valid() {
		exam.ScoringMethod = model.ScoringStandard
	}

	exam.TargetRoles = normalizeRoles(req.TargetRoles)

	exam.Questions = make([]model.Question, 0, len(req.Questions))
	for _, q := range req.Questions {
		if strings.TrimSpace(q.Text) == "" {
			continue
		}
		exam.Questions = append(exam.Questions, model.Question{
			Text:          q.Text,
			Choices:       q.Choices,
			CorrectChoice: strings.ToLower(strings.TrimSpace(q.CorrectChoice)),
			Explanation:   q.Explanation,
			AudioURL:      strings.TrimSpace(q.AudioURL),
			SectionTitle:  strings.TrimSpace(q.SectionTitle),
		})
	}
}

func normalizeRoles(roles []string) []string {
	out := make([]string, 0, len(roles))
	seen := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		r = strings.ToLower(strings.TrimSpace(r))
		if r == "" {
			continue
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
