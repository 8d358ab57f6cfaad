package service

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/agep/exam-backend/internal/grading"
	"github.com/agep/exam-backend/internal/model"
)

// MaxDraftEntries caps the size of an autosaved sheet, whose question count
// is not checked against the exam.
const MaxDraftEntries = 500

const maxAnswerLength = 16

// SanitizeAnswers turns a client payload into an answer sheet. Keys must be
// non-negative integers below limit written in canonical decimal form ("7",
// not "07", "+7" or " 7"), so no two keys name the same question. Other keys
// are ignored. String values are trimmed and lowercased, and blank or
// non-string values become model.BlankAnswer.
func SanitizeAnswers(raw map[string]any, limit int) model.AnswerSheet {
	sheet := make(model.AnswerSheet, len(raw))
	for k, v := range raw {
		idx, ok := questionIndex(k, limit)
		if !ok {
			continue
		}
		sheet[idx] = normalizeAnswer(v)
	}
	return sheet
}

func questionIndex(key string, limit int) (int, bool) {
	idx, err := strconv.Atoi(key)
	if err != nil || idx < 0 || idx >= limit || strconv.Itoa(idx) != key {
		return 0, false
	}
	return idx, true
}

func normalizeAnswer(v any) string {
	s, ok := v.(string)
	if !ok || grading.IsBlank(s) {
		return model.BlankAnswer
	}
	s = strings.ToLower(strings.TrimSpace(s))
	if utf8.RuneCountInString(s) > maxAnswerLength {
		s = string([]rune(s)[:maxAnswerLength])
	}
	return s
}

// ScoreSheet classifies every question with text against sheet. The returned
// sheet records an entry for each scored question, blank when unanswered.
func ScoreSheet(questions []model.Question, sheet model.AnswerSheet) (model.Counts, model.AnswerSheet) {
	var counts model.Counts
	recorded := make(model.AnswerSheet, len(questions))

	for i, q := range questions {
		if !q.Scored() {
			continue
		}
		answer, ok := sheet[i]
		if !ok {
			answer = model.BlankAnswer
		}
		recorded[i] = answer

		switch grading.Classify(answer, q.CorrectChoice) {
		case grading.Correct:
			counts.Correct++
		case grading.Incorrect:
			counts.Incorrect++
		default:
			counts.Blank++
		}
	}
	return counts, recorded
}
