package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agep/exam-backend/internal/model"
)

// ErrDuplicateAttempt is returned by Insert when the student already holds an
// attempt for the exam.
var ErrDuplicateAttempt = errors.New("attempt already recorded for student and exam")

// ErrExamMissing is returned by Insert when the exam row no longer exists,
// e.g. it was deleted while the attempt was being scored.
var ErrExamMissing = errors.New("exam of attempt does not exist")

const pgForeignKeyViolation = "23503"

const attemptColumns = `id, student_id, exam_id, submitted_at, correct_count,
	incorrect_count, blank_count, net_score, answers`

// AttemptRepository is the append-only ledger of scored attempts.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

func scanAttempt(row pgx.Row) (*model.Attempt, error) {
	a := &model.Attempt{}
	var answers []byte
	if err := row.Scan(&a.ID, &a.StudentID, &a.ExamID, &a.SubmittedAt, &a.CorrectCount,
		&a.IncorrectCount, &a.BlankCount, &a.NetScore, &answers); err != nil {
		return nil, err
	}
	a.Answers = model.AnswerSheet{}
	if len(answers) > 0 {
		if err := json.Unmarshal(answers, &a.Answers); err != nil {
			return nil, fmt.Errorf("decode answers of attempt %s: %w", a.ID, err)
		}
	}
	return a, nil
}

func collectAttempts(rows pgx.Rows) ([]model.Attempt, error) {
	defer rows.Close()

	attempts := []model.Attempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, *a)
	}
	return attempts, rows.Err()
}

// FindByStudentAndExam returns the attempt for the pair, or nil when the
// student has not submitted yet.
func (r *AttemptRepository) FindByStudentAndExam(ctx context.Context, studentID int, examID uuid.UUID) (*model.Attempt, error) {
	a, err := scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE student_id = $1 AND exam_id = $2`,
		studentID, examID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

// Insert appends a new attempt and fills its ID and timestamp. The unique
// (student_id, exam_id) constraint turns a second insert into
// ErrDuplicateAttempt, the foreign key a late insert into ErrExamMissing.
func (r *AttemptRepository) Insert(ctx context.Context, a *model.Attempt) error {
	if a.Answers == nil {
		a.Answers = model.AnswerSheet{}
	}
	answers, err := json.Marshal(a.Answers)
	if err != nil {
		return err
	}

	err = r.pool.QueryRow(ctx,
		`INSERT INTO attempts (student_id, exam_id, correct_count, incorrect_count, blank_count, net_score, answers)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (student_id, exam_id) DO NOTHING
		 RETURNING id, submitted_at`,
		a.StudentID, a.ExamID, a.CorrectCount, a.IncorrectCount, a.BlankCount, a.NetScore, answers,
	).Scan(&a.ID, &a.SubmittedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrDuplicateAttempt
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
		return ErrExamMissing
	}
	return err
}

// GetByID retrieves one attempt. pgx.ErrNoRows when missing.
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE id = $1`, id))
}

// ListByExam returns every attempt of an exam, newest first.
func (r *AttemptRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Attempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE exam_id = $1
		 ORDER BY submitted_at DESC, id`, examID)
	if err != nil {
		return nil, err
	}
	return collectAttempts(rows)
}

// ListByStudent returns every attempt of a student, newest first.
func (r *AttemptRepository) ListByStudent(ctx context.Context, studentID int) ([]model.Attempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE student_id = $1
		 ORDER BY submitted_at DESC, id`, studentID)
	if err != nil {
		return nil, err
	}
	return collectAttempts(rows)
}

// DeleteByExam removes every attempt of an exam and reports how many rows
// went away.
func (r *AttemptRepository) DeleteByExam(ctx context.Context, examID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM attempts WHERE exam_id = $1`, examID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
