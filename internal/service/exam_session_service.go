package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/agep/exam-backend/internal/model"
)

// ExamSessionService serves the student side of an exam: the lobby and the
// exam-taking view.
type ExamSessionService struct {
	exams    ExamStore
	attempts AttemptStore
	drafts   *DraftService
	log      zerolog.Logger
}

// NewExamSessionService creates a new ExamSessionService.
func NewExamSessionService(exams ExamStore, attempts AttemptStore, drafts *DraftService, log zerolog.Logger) *ExamSessionService {
	return &ExamSessionService{
		exams:    exams,
		attempts: attempts,
		drafts:   drafts,
		log:      log.With().Str("component", "exam_session_service").Logger(),
	}
}

// Lobby lists the exams open to the student with their completion state.
func (s *ExamSessionService) Lobby(ctx context.Context, id Identity) ([]model.LobbyExam, error) {
	if !id.Authenticated() {
		return nil, ErrUnauthenticated
	}

	exams, err := s.exams.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list exams: %w", ErrStorage, err)
	}
	attempts, err := s.attempts.ListByStudent(ctx, id.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: list attempts: %w", ErrStorage, err)
	}

	done := make(map[uuid.UUID]model.Attempt, len(attempts))
	for _, a := range attempts {
		done[a.ExamID] = a
	}

	lobby := make([]model.LobbyExam, 0, len(exams))
	for i := range exams {
		e := &exams[i]
		if !e.AdmitsRoles(id.Roles) {
			continue
		}

		item := model.LobbyExam{ExamSummary: e.Summary(), LobbyStatus: model.LobbyStatusAvailable}
		if a, ok := done[e.ID]; ok {
			item.LobbyStatus = model.LobbyStatusCompleted
			item.AttemptID = &a.ID
			item.NetScore = &a.NetScore
		} else if started, err := s.drafts.Started(ctx, id.UserID, e.ID); err != nil {
			s.log.Warn().Err(err).Str("exam_id", e.ID.String()).Msg("Could not read draft state for lobby")
		} else if started {
			item.LobbyStatus = model.LobbyStatusInProgress
		}
		lobby = append(lobby, item)
	}
	return lobby, nil
}

// Open starts (or resumes) the student's exam and returns everything the
// exam-taking view needs to restore itself after a reload.
func (s *ExamSessionService) Open(ctx context.Context, id Identity, examID uuid.UUID) (*model.ExamSessionState, error) {
	if !id.Authenticated() {
		return nil, ErrUnauthenticated
	}

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

	timer, err := s.drafts.GetOrStart(ctx, id.UserID, examID, exam.DurationMinutes)
	if err != nil {
		return nil, err
	}
	draft, err := s.drafts.GetDraft(ctx, id.UserID, examID)
	if err != nil {
		return nil, err
	}

	paper := BuildPaper(exam)
	answered := 0
	for _, q := range paper.Questions {
		if v, ok := draft[q.Index]; ok && v != model.BlankAnswer {
			answered++
		}
	}

	return &model.ExamSessionState{
		Paper:   paper,
		Draft:   draft,
		Timer:   timer,
		Answers: answered,
	}, nil
}

// BuildPaper renders the student-facing exam: scored questions only, keyed
// by their authored index, with no correct answers or explanations.
func BuildPaper(exam *model.ExamDefinition) model.ExamPaper {
	paper := model.ExamPaper{
		ExamID:          exam.ID,
		Title:           exam.Title,
		Description:     exam.Description,
		DurationMinutes: exam.DurationMinutes,
		Questions:       make([]model.QuestionForStudent, 0, len(exam.Questions)),
	}

	for i, q := range exam.Questions {
		if !q.Scored() {
			continue
		}
		paper.Questions = append(paper.Questions, model.QuestionForStudent{
			Index:        i,
			Text:         q.Text,
			Options:      q.Choices.Present(),
			AudioURL:     q.AudioURL,
			SectionTitle: q.SectionTitle,
			NewPage:      q.SectionTitle != "" && len(paper.Questions) > 0,
		})
	}
	return paper
}
