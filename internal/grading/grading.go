// Package grading holds the answer classification rule and the score
// formulas shared by submission scoring and item analysis.
package grading

import (
	"strings"
)

// NetPenaltyDivisor is the number of incorrect answers that cancel one
// correct answer under net scoring.
const NetPenaltyDivisor = 4

// Method names understood by NetScore.
const (
	MethodStandard = "standard"
	MethodNet      = "net"
)

// blankMarker is the explicit "no answer" value stored in answer sheets.
const blankMarker = "blank"

// Outcome is the classification of one answer against its key.
type Outcome int

const (
	Blank Outcome = iota
	Correct
	Incorrect
)

func (o Outcome) String() string {
	switch o {
	case Correct:
		return "correct"
	case Incorrect:
		return "incorrect"
	default:
		return "blank"
	}
}

// IsBlank reports whether answer counts as unanswered.
func IsBlank(answer string) bool {
	a := strings.TrimSpace(answer)
	return a == "" || strings.EqualFold(a, blankMarker)
}

// Classify judges answer against correct, case-insensitively. An answer is
// blank when empty or the blank marker, correct when it equals the key and
// incorrect otherwise. A question with no key therefore marks every
// non-blank answer incorrect.
func Classify(answer, correct string) Outcome {
	if IsBlank(answer) {
		return Blank
	}
	if strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(correct)) {
		return Correct
	}
	return Incorrect
}

// NetScore computes the final score for the given method. Unknown methods
// score like standard.
func NetScore(method string, correct, incorrect int) float64 {
	if method == MethodNet {
		return float64(correct) - float64(incorrect)/NetPenaltyDivisor
	}
	return float64(correct)
}
