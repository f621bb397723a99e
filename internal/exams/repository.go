package exams

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	platformdb "github.com/scholaris-sms/scholaris/internal/platform/db"
	"github.com/scholaris-sms/scholaris/internal/shared"
)

// Repository is the persistence port for exams and results.
type Repository interface {
	ListExams(ctx context.Context, yearID, sectionID int64) ([]Exam, error)
	GetExam(ctx context.Context, id int64) (Exam, error)
	CreateExam(ctx context.Context, e *Exam) error
	UpdateExam(ctx context.Context, e Exam) error
	DeleteExam(ctx context.Context, id int64) error
	UpsertResults(ctx context.Context, examID int64, results []Result) error
	ResultsByExam(ctx context.Context, examID int64) ([]Result, error)
	ResultsByStudent(ctx context.Context, studentID int64) ([]Result, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) ListExams(ctx context.Context, yearID, sectionID int64) ([]Exam, error) {
	query := `
		SELECT id, name, academic_year_id, subject_id, section_id, date, max_score, created_at, updated_at
		FROM exams WHERE TRUE`
	args := []any{}
	if yearID > 0 {
		args = append(args, yearID)
		query += fmt.Sprintf(" AND academic_year_id = $%d", len(args))
	}
	if sectionID > 0 {
		args = append(args, sectionID)
		query += fmt.Sprintf(" AND section_id = $%d", len(args))
	}
	query += " ORDER BY date DESC, id DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("exams: list: %w", err)
	}
	defer rows.Close()

	out := []Exam{}
	for rows.Next() {
		var e Exam
		if err := rows.Scan(&e.ID, &e.Name, &e.AcademicYearID, &e.SubjectID, &e.SectionID,
			&e.Date, &e.MaxScore, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("exams: scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *repository) GetExam(ctx context.Context, id int64) (Exam, error) {
	var e Exam
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, academic_year_id, subject_id, section_id, date, max_score, created_at, updated_at
		FROM exams WHERE id = $1`, id,
	).Scan(&e.ID, &e.Name, &e.AcademicYearID, &e.SubjectID, &e.SectionID,
		&e.Date, &e.MaxScore, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Exam{}, shared.ErrNotFound
	}
	if err != nil {
		return Exam{}, fmt.Errorf("exams: get: %w", err)
	}
	return e, nil
}

func (r *repository) CreateExam(ctx context.Context, e *Exam) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO exams (name, academic_year_id, subject_id, section_id, date, max_score)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`,
		e.Name, e.AcademicYearID, e.SubjectID, e.SectionID, e.Date, e.MaxScore,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return translateConstraint(err)
	}
	return nil
}

func (r *repository) UpdateExam(ctx context.Context, e Exam) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE exams SET name = $2, subject_id = $3, section_id = $4, date = $5,
			max_score = $6, updated_at = now()
		WHERE id = $1`,
		e.ID, e.Name, e.SubjectID, e.SectionID, e.Date, e.MaxScore,
	)
	if err != nil {
		return translateConstraint(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) DeleteExam(ctx context.Context, id int64) error {
	return platformdb.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM exam_results WHERE exam_id = $1`, id); err != nil {
			return fmt.Errorf("exams: delete results: %w", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM exams WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("exams: delete: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

// UpsertResults replaces scores for the given students in one transaction.
func (r *repository) UpsertResults(ctx context.Context, examID int64, results []Result) error {
	return platformdb.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, res := range results {
			_, err := tx.Exec(ctx, `
				INSERT INTO exam_results (exam_id, student_id, score, grade, remarks)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (exam_id, student_id) DO UPDATE SET
					score = EXCLUDED.score, grade = EXCLUDED.grade, remarks = EXCLUDED.remarks`,
				examID, res.StudentID, res.Score, res.Grade, res.Remarks,
			)
			if err != nil {
				return translateConstraint(err)
			}
		}
		return nil
	})
}

func (r *repository) ResultsByExam(ctx context.Context, examID int64) ([]Result, error) {
	return r.listResults(ctx, `
		SELECT id, exam_id, student_id, score, grade, coalesce(remarks, ''), created_at
		FROM exam_results WHERE exam_id = $1 ORDER BY student_id`, examID)
}

func (r *repository) ResultsByStudent(ctx context.Context, studentID int64) ([]Result, error) {
	return r.listResults(ctx, `
		SELECT id, exam_id, student_id, score, grade, coalesce(remarks, ''), created_at
		FROM exam_results WHERE student_id = $1 ORDER BY exam_id`, studentID)
}

func (r *repository) listResults(ctx context.Context, query string, args ...any) ([]Result, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("exams: list results: %w", err)
	}
	defer rows.Close()

	out := []Result{}
	for rows.Next() {
		var res Result
		if err := rows.Scan(&res.ID, &res.ExamID, &res.StudentID, &res.Score,
			&res.Grade, &res.Remarks, &res.CreatedAt); err != nil {
			return nil, fmt.Errorf("exams: scan result: %w", err)
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func translateConstraint(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return shared.NewValidationError(map[string]string{"reference": "related record does not exist"})
	}
	return err
}
