package students

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	platformdb "github.com/scholaris-sms/scholaris/internal/platform/db"
	"github.com/scholaris-sms/scholaris/internal/shared"
)

// ListFilters narrows a student listing.
type ListFilters struct {
	Search    string
	SectionID int64
	Status    EnrollmentStatus
	Page      int
	Limit     int
}

// Repository is the persistence port for students.
type Repository interface {
	CreateWithAdmission(ctx context.Context, s *Student, year int) error
	Get(ctx context.Context, id int64) (Student, error)
	Update(ctx context.Context, s Student) error
	List(ctx context.Context, f ListFilters, limit, offset int) ([]Student, int, error)
	SectionOccupancy(ctx context.Context, sectionID int64) (occupied, capacity int, err error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

// CreateWithAdmission allocates the next admission sequence for the year and
// inserts the student in one transaction. The per-year row lock in
// admission_counters serialises concurrent admissions.
func (r *repository) CreateWithAdmission(ctx context.Context, s *Student, year int) error {
	return platformdb.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var seq int
		err := tx.QueryRow(ctx, `
			INSERT INTO admission_counters (year, last_seq)
			VALUES ($1, 1)
			ON CONFLICT (year) DO UPDATE SET last_seq = admission_counters.last_seq + 1
			RETURNING last_seq`, year,
		).Scan(&seq)
		if err != nil {
			return fmt.Errorf("students: next admission seq: %w", err)
		}
		s.AdmissionNo = AdmissionNumber(year, seq)

		err = tx.QueryRow(ctx, `
			INSERT INTO students (admission_no, first_name, last_name, date_of_birth, gender,
			                      guardian_name, guardian_phone, section_id, status, enrolled_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
			RETURNING id, enrolled_at, created_at, updated_at`,
			s.AdmissionNo, s.FirstName, s.LastName, s.DateOfBirth, s.Gender,
			s.GuardianName, s.GuardianPhone, s.SectionID, s.Status,
		).Scan(&s.ID, &s.EnrolledAt, &s.CreatedAt, &s.UpdatedAt)
		if err != nil {
			return fmt.Errorf("students: create: %w", err)
		}
		return nil
	})
}

func (r *repository) Get(ctx context.Context, id int64) (Student, error) {
	var s Student
	err := r.pool.QueryRow(ctx, `
		SELECT id, admission_no, first_name, last_name, date_of_birth, coalesce(gender, ''),
		       coalesce(guardian_name, ''), coalesce(guardian_phone, ''), section_id, status,
		       enrolled_at, created_at, updated_at
		FROM students WHERE id = $1`, id,
	).Scan(&s.ID, &s.AdmissionNo, &s.FirstName, &s.LastName, &s.DateOfBirth, &s.Gender,
		&s.GuardianName, &s.GuardianPhone, &s.SectionID, &s.Status,
		&s.EnrolledAt, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Student{}, shared.ErrNotFound
	}
	if err != nil {
		return Student{}, fmt.Errorf("students: get: %w", err)
	}
	return s, nil
}

func (r *repository) Update(ctx context.Context, s Student) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE students
		SET first_name = $2, last_name = $3, date_of_birth = $4, gender = $5,
		    guardian_name = $6, guardian_phone = $7, section_id = $8, status = $9,
		    updated_at = now()
		WHERE id = $1`,
		s.ID, s.FirstName, s.LastName, s.DateOfBirth, s.Gender,
		s.GuardianName, s.GuardianPhone, s.SectionID, s.Status,
	)
	if err != nil {
		return fmt.Errorf("students: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) List(ctx context.Context, f ListFilters, limit, offset int) ([]Student, int, error) {
	where := []string{"TRUE"}
	args := []any{}

	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := len(args)
		where = append(where, fmt.Sprintf(
			"(first_name ILIKE $%d OR last_name ILIKE $%d OR admission_no ILIKE $%d)", n, n, n))
	}
	if f.SectionID != 0 {
		args = append(args, f.SectionID)
		where = append(where, fmt.Sprintf("section_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	clause := " WHERE " + strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT count(*) FROM students"+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("students: count: %w", err)
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(`
		SELECT id, admission_no, first_name, last_name, date_of_birth, coalesce(gender, ''),
		       coalesce(guardian_name, ''), coalesce(guardian_phone, ''), section_id, status,
		       enrolled_at, created_at, updated_at
		FROM students%s
		ORDER BY last_name, first_name
		LIMIT $%d OFFSET $%d`, clause, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("students: list: %w", err)
	}
	defer rows.Close()

	out := make([]Student, 0, limit)
	for rows.Next() {
		var s Student
		if err := rows.Scan(&s.ID, &s.AdmissionNo, &s.FirstName, &s.LastName, &s.DateOfBirth, &s.Gender,
			&s.GuardianName, &s.GuardianPhone, &s.SectionID, &s.Status,
			&s.EnrolledAt, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("students: scan: %w", err)
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

func (r *repository) SectionOccupancy(ctx context.Context, sectionID int64) (int, int, error) {
	var occupied, capacity int
	err := r.pool.QueryRow(ctx, `
		SELECT (SELECT count(*) FROM students WHERE section_id = s.id AND status = 'ENROLLED'), s.capacity
		FROM sections s WHERE s.id = $1`, sectionID,
	).Scan(&occupied, &capacity)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, shared.ErrNotFound
	}
	if err != nil {
		return 0, 0, fmt.Errorf("students: section occupancy: %w", err)
	}
	return occupied, capacity, nil
}
