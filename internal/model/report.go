package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/agep/exam-backend/internal/stats"
)

// ResultItem is one question of a student's result sheet.
type ResultItem struct {
	Index         int      `json:"index"`
	Text          string   `json:"text"`
	Options       []Option `json:"options"`
	AudioURL      string   `json:"audio_url,omitempty"`
	StudentAnswer string   `json:"student_answer"`
	CorrectChoice string   `json:"correct_choice"`
	Outcome       string   `json:"outcome"`
	// Explanation is only filled for answered, incorrect questions.
	Explanation string `json:"explanation,omitempty"`
}

// ResultSheet is the per-question review of one attempt.
type ResultSheet struct {
	AttemptID     uuid.UUID     `json:"attempt_id"`
	ExamID        uuid.UUID     `json:"exam_id"`
	ExamTitle     string        `json:"exam_title"`
	StudentID     int           `json:"student_id"`
	SubmittedAt   time.Time     `json:"submitted_at"`
	ScoringMethod ScoringMethod `json:"scoring_method"`
	Counts        Counts        `json:"counts"`
	NetScore      float64       `json:"net_score"`
	Items         []ResultItem  `json:"items"`
}

// HistogramBin is one bucket of the score distribution.
type HistogramBin struct {
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
	Count int     `json:"count"`
}

// ItemReport is the item analysis of one question.
type ItemReport struct {
	Index          int     `json:"index"`
	Text           string  `json:"text"`
	CorrectChoice  string  `json:"correct_choice"`
	Correct        int     `json:"correct"`
	Incorrect      int     `json:"incorrect"`
	Blank          int     `json:"blank"`
	CorrectPercent float64 `json:"correct_percent"`
}

// ExamReport aggregates every attempt of an exam.
type ExamReport struct {
	Exam         ExamSummary    `json:"exam"`
	Participants int            `json:"participants"`
	Summary      stats.Summary  `json:"summary"`
	Histogram    []HistogramBin `json:"histogram"`
	Items        []ItemReport   `json:"items"`
	Attempts     []Attempt      `json:"attempts"`
}
