package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/agep/exam-backend/internal/model"
)

func reportExam() model.ExamDefinition {
	return model.ExamDefinition{
		ID:            uuid.New(),
		Title:         "Chemistry",
		AuthorID:      900,
		ScoringMethod: model.ScoringNet,
		Questions: []model.Question{
			{Text: "<p>H<sub>2</sub>O &amp; salt?</p>", Choices: model.Choices{A: "x", B: "y"}, CorrectChoice: "a", Explanation: "water"},
			{Text: "Q2", Choices: model.Choices{A: "x", B: "y"}, CorrectChoice: "b", Explanation: "why"},
			{Text: "Q3", Choices: model.Choices{A: "x", B: "y"}, CorrectChoice: "a", Explanation: "because"},
		},
	}
}

func newReportFixture(t *testing.T) (*ReportService, *submitFixture, model.ExamDefinition, []uuid.UUID) {
	t.Helper()
	exam := reportExam()
	f := newSubmitFixture(exam)
	svc := NewReportService(f.exams, f.attempts, time.UTC, zerolog.Nop())

	sheets := []map[string]any{
		{"0": "a", "1": "b", "2": "a"},
		{"0": "A", "1": "a"},
		{"0": "b", "1": "blank", "2": "b"},
	}
	ids := make([]uuid.UUID, len(sheets))
	for i, raw := range sheets {
		res, err := f.svc.Submit(context.Background(), Identity{UserID: 100 + i}, exam.ID, raw)
		require.NoError(t, err)
		ids[i] = res.AttemptID
	}
	return svc, f, exam, ids
}

func TestResultSheet(t *testing.T) {
	svc, _, _, ids := newReportFixture(t)
	ctx := context.Background()

	sheet, err := svc.ResultSheet(ctx, Identity{UserID: 101}, ids[1])
	require.NoError(t, err)

	assert.Equal(t, model.Counts{Correct: 1, Incorrect: 1, Blank: 1}, sheet.Counts)
	assert.Equal(t, 0.75, sheet.NetScore)
	require.Len(t, sheet.Items, 3)

	assert.Equal(t, "correct", sheet.Items[0].Outcome)
	assert.Empty(t, sheet.Items[0].Explanation)

	assert.Equal(t, "incorrect", sheet.Items[1].Outcome)
	assert.Equal(t, "why", sheet.Items[1].Explanation)

	assert.Equal(t, "blank", sheet.Items[2].Outcome)
	assert.Equal(t, model.BlankAnswer, sheet.Items[2].StudentAnswer)
	assert.Empty(t, sheet.Items[2].Explanation)
}

func TestResultSheetVisibility(t *testing.T) {
	svc, _, _, ids := newReportFixture(t)
	ctx := context.Background()

	_, err := svc.ResultSheet(ctx, Identity{UserID: 100}, ids[1])
	assert.ErrorIs(t, err, ErrAttemptNotVisible)

	_, err = svc.ResultSheet(ctx, colleague, ids[1])
	assert.NoError(t, err)

	_, err = svc.ResultSheet(ctx, student, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.ResultSheet(ctx, Identity{}, ids[0])
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestExamReport(t *testing.T) {
	svc, _, _, _ := newReportFixture(t)
	ctx := context.Background()

	report, err := svc.ExamReport(ctx, instructor, mustExamID(t, svc))
	require.NoError(t, err)

	assert.Equal(t, 3, report.Participants)
	assert.Equal(t, 3, report.Summary.N)
	assert.Equal(t, 3.0, report.Summary.Max)
	assert.Equal(t, 0.75, report.Summary.Median)
	assert.Equal(t, -0.5, report.Summary.Min)

	total := 0
	for _, b := range report.Histogram {
		total += b.Count
	}
	assert.Equal(t, 3, total)
	assert.Len(t, report.Histogram, 8)

	require.Len(t, report.Items, 3)
	assert.Equal(t, 2, report.Items[0].Correct)
	assert.Equal(t, 1, report.Items[0].Incorrect)
	assert.InDelta(t, 66.666, report.Items[0].CorrectPercent, 0.01)
	assert.Equal(t, 1, report.Items[1].Blank)
	assert.Equal(t, 1, report.Items[2].Blank)

	// Newest first.
	assert.True(t, report.Attempts[0].SubmittedAt.After(report.Attempts[2].SubmittedAt))
}

func TestExamReportRestrictedToOwner(t *testing.T) {
	svc, _, _, _ := newReportFixture(t)
	ctx := context.Background()
	examID := mustExamID(t, svc)

	_, err := svc.ExamReport(ctx, colleague, examID)
	assert.ErrorIs(t, err, ErrNotExamAuthor)
	_, err = svc.ExamReport(ctx, student, examID)
	assert.ErrorIs(t, err, ErrInstructorOnly)
	_, err = svc.ExamReport(ctx, admin, examID)
	assert.NoError(t, err)
	_, err = svc.ExamReport(ctx, admin, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExportResultsCSV(t *testing.T) {
	svc, _, _, _ := newReportFixture(t)
	var buf bytes.Buffer

	require.NoError(t, svc.ExportResultsCSV(context.Background(), instructor, mustExamID(t, svc), &buf))

	out := buf.String()
	require.True(t, strings.HasPrefix(out, "\xef\xbb\xbf"))

	rows, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(out, "\xef\xbb\xbf"))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, resultsHeader, rows[0])
	assert.Equal(t, []string{"102", "01-03-2025 09:03", "0", "2", "1", "-0,50"}, rows[1])
	assert.Equal(t, []string{"100", "01-03-2025 09:01", "3", "0", "0", "3,00"}, rows[3])
}

func TestExportAnalysisCSV(t *testing.T) {
	svc, _, _, _ := newReportFixture(t)
	var buf bytes.Buffer

	require.NoError(t, svc.ExportAnalysisCSV(context.Background(), instructor, mustExamID(t, svc), &buf))

	rows, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(buf.String(), "\xef\xbb\xbf"))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, analysisHeader, rows[0])
	assert.Equal(t, []string{"1", "66,67", "2", "1", "0", "A", "H2O & salt?"}, rows[1])
	assert.Equal(t, []string{"2", "33,33", "1", "1", "1", "B", "Q2"}, rows[2])
}

func TestExportXLSX(t *testing.T) {
	svc, _, _, _ := newReportFixture(t)
	var buf bytes.Buffer

	require.NoError(t, svc.ExportXLSX(context.Background(), admin, mustExamID(t, svc), &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Results", "Analysis"}, f.GetSheetList())

	results, err := f.GetRows("Results")
	require.NoError(t, err)
	require.Len(t, results, 4)
	assert.Equal(t, resultsHeader, results[0])

	analysis, err := f.GetRows("Analysis")
	require.NoError(t, err)
	require.Len(t, analysis, 4)
	assert.Equal(t, "Q3", analysis[3][6])
}

func TestFormatDecimal(t *testing.T) {
	tests := map[float64]string{
		0:          "0,00",
		5:          "5,00",
		-0.5:       "-0,50",
		66.6666:    "66,67",
		1234.5:     "1.234,50",
		1234567.25: "1.234.567,25",
		-0.001:     "0,00",
		0.125:      "0,13",
		-2.5:       "-2,50",
	}
	for in, want := range tests {
		assert.Equal(t, want, FormatDecimal(in), "input %v", in)
	}
}

func TestPlainText(t *testing.T) {
	assert.Equal(t, "Which is larger? 3 < 4", PlainText("<p>Which is <b>larger</b>?</p> 3 &lt; 4"))
}

func mustExamID(t *testing.T, svc *ReportService) uuid.UUID {
	t.Helper()
	store := svc.exams.(*fakeExamStore)
	for id := range store.exams {
		return id
	}
	t.Fatal("no exam in store")
	return uuid.Nil
}
