package model

import "strings"

// ChoiceLetters are the labels of the five answer slots, in display order.
var ChoiceLetters = []string{"a", "b", "c", "d", "e"}

// Choices holds the five optional answer texts. A choice is present iff its
// text is non-empty.
type Choices struct {
	A string `json:"a"`
	B string `json:"b"`
	C string `json:"c"`
	D string `json:"d"`
	E string `json:"e"`
}

// Text returns the text for letter, case-insensitive.
func (c Choices) Text(letter string) string {
	switch strings.ToLower(letter) {
	case "a":
		return c.A
	case "b":
		return c.B
	case "c":
		return c.C
	case "d":
		return c.D
	case "e":
		return c.E
	}
	return ""
}

// Option is a single labelled choice.
type Option struct {
	Letter string `json:"letter"`
	Text   string `json:"text"`
}

// Present lists the choices with non-empty text.
func (c Choices) Present() []Option {
	out := make([]Option, 0, len(ChoiceLetters))
	for _, l := range ChoiceLetters {
		if t := c.Text(l); t != "" {
			out = append(out, Option{Letter: l, Text: t})
		}
	}
	return out
}

// Question is one multiple-choice item of an exam.
type Question struct {
	Text          string  `json:"text"`
	Choices       Choices `json:"choices"`
	CorrectChoice string  `json:"correct_choice"`
	Explanation   string  `json:"explanation,omitempty"`
	AudioURL      string  `json:"audio_url,omitempty"`
	SectionTitle  string  `json:"section_title,omitempty"`
}

// Scored reports whether the question takes part in scoring.
func (q Question) Scored() bool {
	return strings.TrimSpace(q.Text) != ""
}

// QuestionForStudent is a question without the correct answer or explanation.
type QuestionForStudent struct {
	Index        int      `json:"index"`
	Text         string   `json:"text"`
	Options      []Option `json:"options"`
	AudioURL     string   `json:"audio_url,omitempty"`
	SectionTitle string   `json:"section_title,omitempty"`
	// NewPage marks the start of a new section page.
	NewPage bool `json:"new_page"`
}

// SaveQuestionRequest is one authored question row.
type SaveQuestionRequest struct {
	Text          string  `json:"text" binding:"max=20000"`
	Choices       Choices `json:"choices"`
	CorrectChoice string  `json:"correct_choice" binding:"choice"`
	Explanation   string  `json:"explanation" binding:"max=20000"`
	AudioURL      string  `json:"audio_url" binding:"omitempty,url,max=2048"`
	SectionTitle  string  `json:"section_title" binding:"max=255"`
}
