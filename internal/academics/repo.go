package academics

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

// Repository is the persistence port for the academic structure.
type Repository interface {
	ListYears(ctx context.Context) ([]AcademicYear, error)
	GetYear(ctx context.Context, id int64) (AcademicYear, error)
	CreateYear(ctx context.Context, y *AcademicYear) error
	UpdateYear(ctx context.Context, y AcademicYear) error
	ActivateYear(ctx context.Context, id int64) error
	ActiveYear(ctx context.Context) (AcademicYear, error)

	ListClassLevels(ctx context.Context) ([]ClassLevel, error)
	CreateClassLevel(ctx context.Context, c *ClassLevel) error
	UpdateClassLevel(ctx context.Context, c ClassLevel) error
	DeleteClassLevel(ctx context.Context, id int64) error

	ListSections(ctx context.Context, classLevelID int64) ([]Section, error)
	GetSection(ctx context.Context, id int64) (Section, error)
	CreateSection(ctx context.Context, s *Section) error
	UpdateSection(ctx context.Context, s Section) error
	DeleteSection(ctx context.Context, id int64) error

	ListSubjects(ctx context.Context) ([]Subject, error)
	CreateSubject(ctx context.Context, s *Subject) error
	UpdateSubject(ctx context.Context, s Subject) error
	DeleteSubject(ctx context.Context, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the Postgres-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) ListYears(ctx context.Context) ([]AcademicYear, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, start_date, end_date, is_active, created_at
		FROM academic_years ORDER BY start_date DESC`)
	if err != nil {
		return nil, fmt.Errorf("academics: list years: %w", err)
	}
	defer rows.Close()

	out := []AcademicYear{}
	for rows.Next() {
		var y AcademicYear
		if err := rows.Scan(&y.ID, &y.Name, &y.StartDate, &y.EndDate, &y.Active, &y.CreatedAt); err != nil {
			return nil, fmt.Errorf("academics: scan year: %w", err)
		}
		out = append(out, y)
	}
	return out, rows.Err()
}

func (r *repository) GetYear(ctx context.Context, id int64) (AcademicYear, error) {
	var y AcademicYear
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, start_date, end_date, is_active, created_at
		FROM academic_years WHERE id = $1`, id,
	).Scan(&y.ID, &y.Name, &y.StartDate, &y.EndDate, &y.Active, &y.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return AcademicYear{}, shared.ErrNotFound
	}
	if err != nil {
		return AcademicYear{}, fmt.Errorf("academics: get year: %w", err)
	}
	return y, nil
}

func (r *repository) CreateYear(ctx context.Context, y *AcademicYear) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO academic_years (name, start_date, end_date, is_active)
		VALUES ($1, $2, $3, FALSE)
		RETURNING id, created_at`,
		y.Name, y.StartDate, y.EndDate,
	).Scan(&y.ID, &y.CreatedAt)
	if err != nil {
		return fmt.Errorf("academics: create year: %w", translateConstraint(err, "name"))
	}
	return nil
}

func (r *repository) UpdateYear(ctx context.Context, y AcademicYear) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE academic_years SET name = $2, start_date = $3, end_date = $4 WHERE id = $1`,
		y.ID, y.Name, y.StartDate, y.EndDate,
	)
	if err != nil {
		return fmt.Errorf("academics: update year: %w", translateConstraint(err, "name"))
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ActivateYear flips the single active flag in one transaction.
func (r *repository) ActivateYear(ctx context.Context, id int64) error {
	return platformdb.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `UPDATE academic_years SET is_active = FALSE WHERE is_active`); err != nil {
			return fmt.Errorf("academics: deactivate years: %w", err)
		}
		tag, err := tx.Exec(ctx, `UPDATE academic_years SET is_active = TRUE WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("academics: activate year: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

func (r *repository) ActiveYear(ctx context.Context) (AcademicYear, error) {
	var y AcademicYear
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, start_date, end_date, is_active, created_at
		FROM academic_years WHERE is_active`).
		Scan(&y.ID, &y.Name, &y.StartDate, &y.EndDate, &y.Active, &y.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return AcademicYear{}, shared.ErrNotFound
	}
	if err != nil {
		return AcademicYear{}, fmt.Errorf("academics: active year: %w", err)
	}
	return y, nil
}

func (r *repository) ListClassLevels(ctx context.Context) ([]ClassLevel, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, ordinal, created_at FROM class_levels ORDER BY ordinal, name`)
	if err != nil {
		return nil, fmt.Errorf("academics: list class levels: %w", err)
	}
	defer rows.Close()

	out := []ClassLevel{}
	for rows.Next() {
		var c ClassLevel
		if err := rows.Scan(&c.ID, &c.Name, &c.Ordinal, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("academics: scan class level: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *repository) CreateClassLevel(ctx context.Context, c *ClassLevel) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO class_levels (name, ordinal) VALUES ($1, $2) RETURNING id, created_at`,
		c.Name, c.Ordinal,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return fmt.Errorf("academics: create class level: %w", translateConstraint(err, "name"))
	}
	return nil
}

func (r *repository) UpdateClassLevel(ctx context.Context, c ClassLevel) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE class_levels SET name = $2, ordinal = $3 WHERE id = $1`, c.ID, c.Name, c.Ordinal)
	if err != nil {
		return fmt.Errorf("academics: update class level: %w", translateConstraint(err, "name"))
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) DeleteClassLevel(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM class_levels WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("academics: delete class level: %w", translateConstraint(err, "id"))
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) ListSections(ctx context.Context, classLevelID int64) ([]Section, error) {
	query := `
		SELECT id, class_level_id, name, capacity, homeroom_teacher_id, created_at
		FROM sections`
	args := []any{}
	if classLevelID != 0 {
		query += ` WHERE class_level_id = $1`
		args = append(args, classLevelID)
	}
	query += ` ORDER BY name`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("academics: list sections: %w", err)
	}
	defer rows.Close()

	out := []Section{}
	for rows.Next() {
		var s Section
		if err := rows.Scan(&s.ID, &s.ClassLevelID, &s.Name, &s.Capacity, &s.HomeroomTeacherID, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("academics: scan section: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *repository) GetSection(ctx context.Context, id int64) (Section, error) {
	var s Section
	err := r.pool.QueryRow(ctx, `
		SELECT id, class_level_id, name, capacity, homeroom_teacher_id, created_at
		FROM sections WHERE id = $1`, id,
	).Scan(&s.ID, &s.ClassLevelID, &s.Name, &s.Capacity, &s.HomeroomTeacherID, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Section{}, shared.ErrNotFound
	}
	if err != nil {
		return Section{}, fmt.Errorf("academics: get section: %w", err)
	}
	return s, nil
}

func (r *repository) CreateSection(ctx context.Context, s *Section) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO sections (class_level_id, name, capacity, homeroom_teacher_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		s.ClassLevelID, s.Name, s.Capacity, s.HomeroomTeacherID,
	).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return fmt.Errorf("academics: create section: %w", translateConstraint(err, "name"))
	}
	return nil
}

func (r *repository) UpdateSection(ctx context.Context, s Section) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE sections SET name = $2, capacity = $3, homeroom_teacher_id = $4 WHERE id = $1`,
		s.ID, s.Name, s.Capacity, s.HomeroomTeacherID,
	)
	if err != nil {
		return fmt.Errorf("academics: update section: %w", translateConstraint(err, "name"))
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) DeleteSection(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sections WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("academics: delete section: %w", translateConstraint(err, "id"))
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) ListSubjects(ctx context.Context) ([]Subject, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, code, created_at FROM subjects ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("academics: list subjects: %w", err)
	}
	defer rows.Close()

	out := []Subject{}
	for rows.Next() {
		var s Subject
		if err := rows.Scan(&s.ID, &s.Name, &s.Code, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("academics: scan subject: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *repository) CreateSubject(ctx context.Context, s *Subject) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO subjects (name, code) VALUES ($1, $2) RETURNING id, created_at`,
		s.Name, s.Code,
	).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return fmt.Errorf("academics: create subject: %w", translateConstraint(err, "code"))
	}
	return nil
}

func (r *repository) UpdateSubject(ctx context.Context, s Subject) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE subjects SET name = $2, code = $3 WHERE id = $1`, s.ID, s.Name, s.Code)
	if err != nil {
		return fmt.Errorf("academics: update subject: %w", translateConstraint(err, "code"))
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) DeleteSubject(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM subjects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("academics: delete subject: %w", translateConstraint(err, "id"))
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// translateConstraint maps unique and foreign-key violations to caller-facing
// validation errors.
func translateConstraint(err error, field string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return shared.NewValidationError(map[string]string{field: "already exists"})
		case "23503":
			return shared.NewValidationError(map[string]string{field: "still referenced by other records"})
		}
	}
	return err
}
