package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/agep/exam-backend/internal/model"
)

// ExamLoader resolves exam definitions. Implementations return pgx.ErrNoRows
// for unknown ids.
type ExamLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.ExamDefinition, error)
}

// ExamStore is the full exam definition store used by authoring and the lobby.
type ExamStore interface {
	ExamLoader
	ListByAuthor(ctx context.Context, authorID, limit, offset int) ([]model.ExamDefinition, int, error)
	ListAll(ctx context.Context) ([]model.ExamDefinition, error)
	Create(ctx context.Context, e *model.ExamDefinition) error
	Update(ctx context.Context, e *model.ExamDefinition) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// AttemptStore is the attempt ledger. FindByStudentAndExam returns nil, nil
// when the student has no attempt; Insert returns
// repository.ErrDuplicateAttempt on a second attempt for the same pair.
type AttemptStore interface {
	FindByStudentAndExam(ctx context.Context, studentID int, examID uuid.UUID) (*model.Attempt, error)
	Insert(ctx context.Context, a *model.Attempt) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error)
	ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Attempt, error)
	ListByStudent(ctx context.Context, studentID int) ([]model.Attempt, error)
	DeleteByExam(ctx context.Context, examID uuid.UUID) (int64, error)
}
