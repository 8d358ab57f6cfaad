package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ScoringMethod selects how an attempt's net score is derived from its counts.
type ScoringMethod string

const (
	// ScoringStandard counts correct answers only.
	ScoringStandard ScoringMethod = "standard"
	// ScoringNet subtracts a quarter point per incorrect answer.
	ScoringNet ScoringMethod = "net"
)

// Valid reports whether m is a known scoring method.
func (m ScoringMethod) Valid() bool {
	return m == ScoringStandard || m == ScoringNet
}

// ExamDefinition is an authored exam with its ordered question list.
type ExamDefinition struct {
	ID              uuid.UUID     `json:"id"`
	Title           string        `json:"title"`
	Description     string        `json:"description"`
	AuthorID        int           `json:"author_id"`
	DurationMinutes int           `json:"duration_minutes"`
	ScoringMethod   ScoringMethod `json:"scoring_method"`
	TargetRoles     []string      `json:"target_roles"`
	Questions       []Question    `json:"questions"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// Timed reports whether a countdown is enforced for this exam.
func (e *ExamDefinition) Timed() bool {
	return e.DurationMinutes > 0
}

// AdmitsRoles reports whether a holder of roles may take the exam.
// An empty target set admits everyone.
func (e *ExamDefinition) AdmitsRoles(roles []string) bool {
	if len(e.TargetRoles) == 0 {
		return true
	}
	for _, target := range e.TargetRoles {
		for _, r := range roles {
			if strings.EqualFold(target, r) {
				return true
			}
		}
	}
	return false
}

// AnswerKey returns the correct choice of every question by position.
func (e *ExamDefinition) AnswerKey() []string {
	key := make([]string, len(e.Questions))
	for i, q := range e.Questions {
		key[i] = q.CorrectChoice
	}
	return key
}

// SaveExamRequest is the payload for creating or replacing an exam.
type SaveExamRequest struct {
	Title           string                `json:"title" binding:"required,min=1,max=255"`
	Description     string                `json:"description" binding:"max=20000"`
	DurationMinutes int                   `json:"duration_minutes" binding:"min=0,max=600"`
	ScoringMethod   string                `json:"scoring_method" binding:"omitempty,oneof=standard net"`
	TargetRoles     []string              `json:"target_roles" binding:"omitempty,dive,min=1,max=64"`
	Questions       []SaveQuestionRequest `json:"questions" binding:"omitempty,max=500,dive"`
}

// ExamSummary is the lightweight listing form of an exam.
type ExamSummary struct {
	ID              uuid.UUID     `json:"id"`
	Title           string        `json:"title"`
	AuthorID        int           `json:"author_id"`
	DurationMinutes int           `json:"duration_minutes"`
	ScoringMethod   ScoringMethod `json:"scoring_method"`
	TargetRoles     []string      `json:"target_roles"`
	QuestionCount   int           `json:"question_count"`
	CreatedAt       time.Time     `json:"created_at"`
}

// Summary strips the question bodies from e.
func (e *ExamDefinition) Summary() ExamSummary {
	return ExamSummary{
		ID:              e.ID,
		Title:           e.Title,
		AuthorID:        e.AuthorID,
		DurationMinutes: e.DurationMinutes,
		ScoringMethod:   e.ScoringMethod,
		TargetRoles:     e.TargetRoles,
		QuestionCount:   len(e.Questions),
		CreatedAt:       e.CreatedAt,
	}
}
