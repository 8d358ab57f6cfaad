package model

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// BlankAnswer is the explicit marker for an unanswered question.
const BlankAnswer = "blank"

// AnswerSheet maps question index to the chosen letter or BlankAnswer.
type AnswerSheet map[int]string

// Counts is the correctness breakdown of one attempt.
type Counts struct {
	Correct   int `json:"correct"`
	Incorrect int `json:"incorrect"`
	Blank     int `json:"blank"`
}

// Total is the number of scored questions.
func (c Counts) Total() int {
	return c.Correct + c.Incorrect + c.Blank
}

// Attempt is one student's completed, scored submission for one exam.
type Attempt struct {
	ID             uuid.UUID   `json:"id"`
	StudentID      int         `json:"student_id"`
	ExamID         uuid.UUID   `json:"exam_id"`
	SubmittedAt    time.Time   `json:"submitted_at"`
	CorrectCount   int         `json:"correct_count"`
	IncorrectCount int         `json:"incorrect_count"`
	BlankCount     int         `json:"blank_count"`
	NetScore       float64     `json:"net_score"`
	Answers        AnswerSheet `json:"answers"`
}

// Counts returns the stored breakdown.
func (a *Attempt) Counts() Counts {
	return Counts{Correct: a.CorrectCount, Incorrect: a.IncorrectCount, Blank: a.BlankCount}
}

// Raw converts the sheet back into the loose payload shape accepted by the
// scoring engine.
func (s AnswerSheet) Raw() map[string]any {
	raw := make(map[string]any, len(s))
	for idx, v := range s {
		raw[strconv.Itoa(idx)] = v
	}
	return raw
}
