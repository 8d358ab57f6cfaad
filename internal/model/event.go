package model

import (
	"time"

	"github.com/google/uuid"
)

// SubmissionEventType tags messages on an exam's submissions channel.
type SubmissionEventType string

const SubmissionEventSubmitted SubmissionEventType = "submitted"

// SubmissionEvent is published once an attempt is stored.
type SubmissionEvent struct {
	Type        SubmissionEventType `json:"type"`
	ExamID      uuid.UUID           `json:"exam_id"`
	StudentID   int                 `json:"student_id"`
	AttemptID   uuid.UUID           `json:"attempt_id"`
	Counts      Counts              `json:"counts"`
	NetScore    float64             `json:"net_score"`
	SubmittedAt time.Time           `json:"submitted_at"`
}

// DraftCleanupJob asks the cleanup worker to drop a student's transient
// exam state after an inline clear failed.
type DraftCleanupJob struct {
	StudentID int       `json:"student_id"`
	ExamID    uuid.UUID `json:"exam_id"`
	Attempts  int       `json:"attempts"`
}
