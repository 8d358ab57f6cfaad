package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agep/exam-backend/internal/model"
)

const examColumns = `id, title, description, author_id, duration_minutes, scoring_method,
	target_roles, questions, created_at, updated_at`

// ExamRepository handles exam definition data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

func scanExam(row pgx.Row) (*model.ExamDefinition, error) {
	e := &model.ExamDefinition{}
	var questions []byte
	if err := row.Scan(&e.ID, &e.Title, &e.Description, &e.AuthorID, &e.DurationMinutes,
		&e.ScoringMethod, &e.TargetRoles, &questions, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	if len(questions) > 0 {
		if err := json.Unmarshal(questions, &e.Questions); err != nil {
			return nil, fmt.Errorf("decode questions of exam %s: %w", e.ID, err)
		}
	}
	if e.Questions == nil {
		e.Questions = []model.Question{}
	}
	if e.TargetRoles == nil {
		e.TargetRoles = []string{}
	}
	return e, nil
}

func encodeQuestions(qs []model.Question) ([]byte, error) {
	if qs == nil {
		qs = []model.Question{}
	}
	return json.Marshal(qs)
}

// GetByID retrieves an exam by its UUID. A missing exam yields pgx.ErrNoRows.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ExamDefinition, error) {
	return scanExam(r.pool.QueryRow(ctx,
		`SELECT `+examColumns+` FROM exams WHERE id = $1`, id))
}

// ListByAuthor returns a page of exams written by authorID, newest first,
// along with the total count. authorID=0 lists every exam.
func (r *ExamRepository) ListByAuthor(ctx context.Context, authorID, limit, offset int) ([]model.ExamDefinition, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM exams WHERE ($1 = 0 OR author_id = $1)`, authorID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+examColumns+` FROM exams
		 WHERE ($1 = 0 OR author_id = $1)
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`, authorID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	exams := []model.ExamDefinition{}
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, 0, err
		}
		exams = append(exams, *e)
	}
	return exams, total, rows.Err()
}

// ListAll returns every exam, newest first. Used by the student lobby.
func (r *ExamRepository) ListAll(ctx context.Context) ([]model.ExamDefinition, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+examColumns+` FROM exams ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	exams := []model.ExamDefinition{}
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		exams = append(exams, *e)
	}
	return exams, rows.Err()
}

// Create inserts a new exam and fills its generated fields.
func (r *ExamRepository) Create(ctx context.Context, e *model.ExamDefinition) error {
	questions, err := encodeQuestions(e.Questions)
	if err != nil {
		return err
	}
	return r.pool.QueryRow(ctx,
		`INSERT INTO exams (title, description, author_id, duration_minutes, scoring_method, target_roles, questions)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at, updated_at`,
		e.Title, e.Description, e.AuthorID, e.DurationMinutes, e.ScoringMethod, e.TargetRoles, questions,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

// Update replaces the editable fields of an exam. pgx.ErrNoRows when missing.
func (r *ExamRepository) Update(ctx context.Context, e *model.ExamDefinition) error {
	questions, err := encodeQuestions(e.Questions)
	if err != nil {
		return err
	}
	return r.pool.QueryRow(ctx,
		`UPDATE exams
		 SET title = $1, description = $2, duration_minutes = $3, scoring_method = $4,
		     target_roles = $5, questions = $6, updated_at = NOW()
		 WHERE id = $7
		 RETURNING created_at, updated_at`,
		e.Title, e.Description, e.DurationMinutes, e.ScoringMethod, e.TargetRoles, questions, e.ID,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
}

// Delete removes an exam definition. pgx.ErrNoRows when nothing was deleted.
func (r *ExamRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM exams WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
