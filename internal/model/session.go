package model

import "github.com/google/uuid"

// Timer is the countdown state of an in-progress exam.
type Timer struct {
	Timed            bool  `json:"timed"`
	RemainingSeconds int64 `json:"remaining_seconds"`
}

// ExamPaper is what a student sees when opening an exam.
type ExamPaper struct {
	ExamID          uuid.UUID            `json:"exam_id"`
	Title           string               `json:"title"`
	Description     string               `json:"description,omitempty"`
	DurationMinutes int                  `json:"duration_minutes"`
	Questions       []QuestionForStudent `json:"questions"`
}

// ExamSessionState restores an exam after a page reload.
type ExamSessionState struct {
	Paper   ExamPaper   `json:"paper"`
	Draft   AnswerSheet `json:"draft"`
	Timer   Timer       `json:"timer"`
	Answers int         `json:"answered_count"`
}

// LobbyStatus is the availability of an exam for one student.
type LobbyStatus string

const (
	LobbyStatusAvailable  LobbyStatus = "AVAILABLE"
	LobbyStatusInProgress LobbyStatus = "IN_PROGRESS"
	LobbyStatusCompleted  LobbyStatus = "COMPLETED"
)

// LobbyExam is an exam as listed on the student dashboard.
type LobbyExam struct {
	ExamSummary
	LobbyStatus LobbyStatus `json:"lobby_status"`
	AttemptID   *uuid.UUID  `json:"attempt_id,omitempty"`
	NetScore    *float64    `json:"net_score,omitempty"`
}

// SubmitRequest carries the raw answer payload. Values are validated by the
// scoring engine, not by binding, so malformed entries degrade to blank.
type SubmitRequest struct {
	Answers map[string]any `json:"answers"`
}
