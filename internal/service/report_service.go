package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"html"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/agep/exam-backend/internal/grading"
	"github.com/agep/exam-backend/internal/model"
	"github.com/agep/exam-backend/internal/stats"
)

const exportDateLayout = "02-01-2006 15:04"

// utf8BOM lets spreadsheet programs detect the CSV encoding.
const utf8BOM = "\xef\xbb\xbf"

var (
	resultsHeader  = []string{"Student ID", "Submitted At", "Correct", "Incorrect", "Blank", "Net Score"}
	analysisHeader = []string{"No", "Correct %", "Correct", "Incorrect", "Blank", "Key", "Question"}
	tagPattern     = regexp.MustCompile(`<[^>]*>`)
)

// ReportService builds the read side: result sheets, exam reports and
// exports.
type ReportService struct {
	exams    ExamLoader
	attempts AttemptStore
	loc      *time.Location
	log      zerolog.Logger
}

// NewReportService creates a new ReportService. Export timestamps are
// rendered in loc; nil means UTC.
func NewReportService(exams ExamLoader, attempts AttemptStore, loc *time.Location, log zerolog.Logger) *ReportService {
	if loc == nil {
		loc = time.UTC
	}
	return &ReportService{
		exams:    exams,
		attempts: attempts,
		loc:      loc,
		log:      log.With().Str("component", "report_service").Logger(),
	}
}

// ─── Result sheet ──────────────────────────────────────────────────────────

// ResultSheet returns the review of one attempt. Students may only read
// their own; staff may read any.
func (s *ReportService) ResultSheet(ctx context.Context, id Identity, attemptID uuid.UUID) (*model.ResultSheet, error) {
	if !id.Authenticated() {
		return nil, ErrUnauthenticated
	}

	attempt, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: load attempt: %w", ErrStorage, err)
	}
	if attempt.StudentID != id.UserID && !id.IsStaff() {
		return nil, ErrAttemptNotVisible
	}

	exam, err := s.loadExam(ctx, attempt.ExamID)
	if err != nil {
		return nil, err
	}

	sheet := &model.ResultSheet{
		AttemptID:     attempt.ID,
		ExamID:        exam.ID,
		ExamTitle:     exam.Title,
		StudentID:     attempt.StudentID,
		SubmittedAt:   attempt.SubmittedAt,
		ScoringMethod: exam.ScoringMethod,
		Counts:        attempt.Counts(),
		NetScore:      attempt.NetScore,
		Items:         make([]model.ResultItem, 0, len(exam.Questions)),
	}

	for i, q := range exam.Questions {
		if !q.Scored() {
			continue
		}
		answer, ok := attempt.Answers[i]
		if !ok {
			answer = model.BlankAnswer
		}
		outcome := grading.Classify(answer, q.CorrectChoice)

		item := model.ResultItem{
			Index:         i,
			Text:          q.Text,
			Options:       q.Choices.Present(),
			AudioURL:      q.AudioURL,
			StudentAnswer: answer,
			CorrectChoice: q.CorrectChoice,
			Outcome:       outcome.String(),
		}
		if outcome == grading.Incorrect {
			item.Explanation = q.Explanation
		}
		sheet.Items = append(sheet.Items, item)
	}
	return sheet, nil
}

// ─── Exam report ───────────────────────────────────────────────────────────

// ExamReport aggregates all attempts of an exam. Only the exam's author or
// an administrator may read it.
func (s *ReportService) ExamReport(ctx context.Context, id Identity, examID uuid.UUID) (*model.ExamReport, error) {
	exam, attempts, err := s.loadForReport(ctx, id, examID)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, len(attempts))
	for i, a := range attempts {
		scores[i] = a.NetScore
	}

	ranges, counts := stats.Histogram(scores, stats.DefaultBins)
	bins := make([]model.HistogramBin, len(ranges))
	for i, r := range ranges {
		bins[i] = model.HistogramBin{Low: r.Low, High: r.High, Count: counts[i]}
	}

	return &model.ExamReport{
		Exam:         exam.Summary(),
		Participants: len(attempts),
		Summary:      stats.Describe(scores),
		Histogram:    bins,
		Items:        itemReports(exam, attempts),
		Attempts:     attempts,
	}, nil
}

func itemReports(exam *model.ExamDefinition, attempts []model.Attempt) []model.ItemReport {
	sheets := make([]map[int]string, len(attempts))
	for i, a := range attempts {
		sheets[i] = a.Answers
	}
	tallies := stats.ItemAnalysis(exam.AnswerKey(), sheets)

	items := make([]model.ItemReport, 0, len(tallies))
	for i, t := range tallies {
		q := exam.Questions[i]
		if !q.Scored() {
			continue
		}
		items = append(items, model.ItemReport{
			Index:          i,
			Text:           q.Text,
			CorrectChoice:  q.CorrectChoice,
			Correct:        t.Correct,
			Incorrect:      t.Incorrect,
			Blank:          t.Blank,
			CorrectPercent: t.CorrectPercent(len(attempts)),
		})
	}
	return items
}

// ─── Exports ───────────────────────────────────────────────────────────────

// ExportResultsCSV writes one row per attempt, newest first.
func (s *ReportService) ExportResultsCSV(ctx context.Context, id Identity, examID uuid.UUID, w io.Writer) error {
	_, attempts, err := s.loadForReport(ctx, id, examID)
	if err != nil {
		return err
	}
	return writeCSV(w, resultsHeader, s.resultRows(attempts))
}

// ExportAnalysisCSV writes one row per scored question.
func (s *ReportService) ExportAnalysisCSV(ctx context.Context, id Identity, examID uuid.UUID, w io.Writer) error {
	exam, attempts, err := s.loadForReport(ctx, id, examID)
	if err != nil {
		return err
	}
	return writeCSV(w, analysisHeader, analysisRows(itemReports(exam, attempts)))
}

// ExportXLSX writes a workbook with a Results and an Analysis sheet.
func (s *ReportService) ExportXLSX(ctx context.Context, id Identity, examID uuid.UUID, w io.Writer) error {
	exam, attempts, err := s.loadForReport(ctx, id, examID)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.log.Warn().Err(err).Msg("Closing workbook failed")
		}
	}()

	if err := f.SetSheetName("Sheet1", "Results"); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet("Analysis"); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	if err := writeSheet(f, "Results", resultsHeader, s.resultRows(attempts), bold); err != nil {
		return err
	}
	if err := writeSheet(f, "Analysis", analysisHeader, analysisRows(itemReports(exam, attempts)), bold); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func (s *ReportService) resultRows(attempts []model.Attempt) [][]string {
	rows := make([][]string, len(attempts))
	for i, a := range attempts {
		rows[i] = []string{
			strconv.Itoa(a.StudentID),
			a.SubmittedAt.In(s.loc).Format(exportDateLayout),
			strconv.Itoa(a.CorrectCount),
			strconv.Itoa(a.IncorrectCount),
			strconv.Itoa(a.BlankCount),
			FormatDecimal(a.NetScore),
		}
	}
	return rows
}

func analysisRows(items []model.ItemReport) [][]string {
	rows := make([][]string, len(items))
	for i, it := range items {
		rows[i] = []string{
			strconv.Itoa(it.Index + 1),
			FormatDecimal(it.CorrectPercent),
			strconv.Itoa(it.Correct),
			strconv.Itoa(it.Incorrect),
			strconv.Itoa(it.Blank),
			strings.ToUpper(it.CorrectChoice),
			PlainText(it.Text),
		}
	}
	return rows
}

func writeCSV(w io.Writer, header []string, rows [][]string) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, header []string, rows [][]string, headerStyle int) error {
	if err := setRow(f, sheet, 1, header); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}
	for i, r := range rows {
		if err := setRow(f, sheet, i+2, r); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	vals := make([]interface{}, len(values))
	for i, v := range values {
		vals[i] = v
	}
	if err := f.SetSheetRow(sheet, cell, &vals); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

// ─── Helpers ───────────────────────────────────────────────────────────────

func (s *ReportService) loadExam(ctx context.Context, examID uuid.UUID) (*model.ExamDefinition, error) {
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: load exam: %w", ErrStorage, err)
	}
	return exam, nil
}

func (s *ReportService) loadForReport(ctx context.Context, id Identity, examID uuid.UUID) (*model.ExamDefinition, []model.Attempt, error) {
	if err := requireStaff(id); err != nil {
		return nil, nil, err
	}
	exam, err := s.loadExam(ctx, examID)
	if err != nil {
		return nil, nil, err
	}
	if !canManage(id, exam) {
		return nil, nil, ErrNotExamAuthor
	}
	attempts, err := s.attempts.ListByExam(ctx, examID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: list attempts: %w", ErrStorage, err)
	}
	return exam, attempts, nil
}

// FormatDecimal renders v with two decimals, ',' as decimal separator and
// '.' grouping thousands: 1234.5 becomes "1.234,50". Halves round away from
// zero and values that round to zero print unsigned.
func FormatDecimal(v float64) string {
	r := math.Round(v*100) / 100
	if r == 0 {
		r = 0
	}
	return message.NewPrinter(language.German).Sprint(number.Decimal(r, number.Scale(2)))
}

// PlainText strips markup from rich question text for tabular exports.
func PlainText(s string) string {
	s = tagPattern.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(html.UnescapeString(s)), " ")
}
