package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scholaris-sms/scholaris/internal/audit"
	platformdb "github.com/scholaris-sms/scholaris/internal/platform/db"
	"github.com/scholaris-sms/scholaris/internal/shared"
)

// ListFilters narrows an account listing.
type ListFilters struct {
	Search string
	Status Status
	RoleID int64
	Page   int
	Limit  int
}

// Repository is the persistence port for accounts. WithTx yields a
// repository bound to a transaction so multi-table changes commit or roll
// back together.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error

	EmailExists(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, a *Account) error
	Get(ctx context.Context, id int64) (Account, error)
	Update(ctx context.Context, a *Account) error
	SoftDelete(ctx context.Context, id int64) error
	List(ctx context.Context, f ListFilters, limit, offset int) ([]Account, int, error)

	ReplaceRole(ctx context.Context, accountID, roleID int64) error
	ClearRoles(ctx context.Context, accountID int64) (int, error)
	RoleNames(ctx context.Context, accountID int64) ([]string, error)

	TeacherProfile(ctx context.Context, accountID int64) (*TeacherProfile, error)
	CreateTeacherProfile(ctx context.Context, p *TeacherProfile) error
	UpdateTeacherProfile(ctx context.Context, accountID int64, qualification, specialization string) error
	DeleteTeacherProfile(ctx context.Context, accountID int64) (bool, error)

	DeleteSessions(ctx context.Context, accountID int64) (int, error)
	RecordAudit(ctx context.Context, e audit.Entry) error
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGRepository implements Repository on Postgres.
type PGRepository struct {
	pool *pgxpool.Pool
	db   querier
}

func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool, db: pool}
}

func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return platformdb.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &PGRepository{pool: r.pool, db: tx})
	})
}

// EmailExists checks against every row, soft-deleted included, so addresses
// are never reused.
func (r *PGRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE lower(email) = lower($1))`, email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("accounts: email exists: %w", err)
	}
	return exists, nil
}

func (r *PGRepository) Create(ctx context.Context, a *Account) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO accounts (first_name, last_name, email, phone, password_hash, status, is_active, email_verified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`,
		a.FirstName, a.LastName, a.Email, a.Phone, a.PasswordHash, a.Status, a.IsActive, a.EmailVerified,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("accounts: create: %w", translateUnique(err))
	}
	return nil
}

func (r *PGRepository) Get(ctx context.Context, id int64) (Account, error) {
	var a Account
	err := r.db.QueryRow(ctx, `
		SELECT id, first_name, last_name, email, coalesce(phone, ''), password_hash,
		       status, is_active, email_verified, deleted_at, created_at, updated_at
		FROM accounts
		WHERE id = $1 AND deleted_at IS NULL`, id,
	).Scan(&a.ID, &a.FirstName, &a.LastName, &a.Email, &a.Phone, &a.PasswordHash,
		&a.Status, &a.IsActive, &a.EmailVerified, &a.DeletedAt, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, shared.ErrNotFound
	}
	if err != nil {
		return Account{}, fmt.Errorf("accounts: get: %w", err)
	}
	return a, nil
}

func (r *PGRepository) Update(ctx context.Context, a *Account) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE accounts
		SET first_name = $2, last_name = $3, email = $4, phone = $5,
		    password_hash = $6, status = $7, is_active = $8, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL`,
		a.ID, a.FirstName, a.LastName, a.Email, a.Phone, a.PasswordHash, a.Status, a.IsActive,
	)
	if err != nil {
		return fmt.Errorf("accounts: update: %w", translateUnique(err))
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *PGRepository) SoftDelete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE accounts
		SET deleted_at = now(), status = $2, is_active = FALSE, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL`,
		id, StatusInactive,
	)
	if err != nil {
		return fmt.Errorf("accounts: soft delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *PGRepository) List(ctx context.Context, f ListFilters, limit, offset int) ([]Account, int, error) {
	where := []string{"a.deleted_at IS NULL"}
	args := []any{}

	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := len(args)
		where = append(where, fmt.Sprintf(
			"(a.first_name ILIKE $%d OR a.last_name ILIKE $%d OR a.email ILIKE $%d)", n, n, n))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("a.status = $%d", len(args)))
	}
	if f.RoleID != 0 {
		args = append(args, f.RoleID)
		where = append(where, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM account_roles x WHERE x.account_id = a.id AND x.role_id = $%d)", len(args)))
	}
	clause := " WHERE " + strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, "SELECT count(*) FROM accounts a"+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("accounts: count: %w", err)
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(`
		SELECT a.id, a.first_name, a.last_name, a.email, coalesce(a.phone, ''),
		       a.status, a.is_active, a.email_verified, a.created_at, a.updated_at,
		       coalesce(array_agg(ro.name ORDER BY ro.name) FILTER (WHERE ro.name IS NOT NULL), '{}')
		FROM accounts a
		LEFT JOIN account_roles ar ON ar.account_id = a.id
		LEFT JOIN roles ro ON ro.id = ar.role_id
		%s
		GROUP BY a.id
		ORDER BY a.created_at DESC, a.id DESC
		LIMIT $%d OFFSET $%d`, clause, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("accounts: list: %w", err)
	}
	defer rows.Close()

	out := make([]Account, 0, limit)
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.FirstName, &a.LastName, &a.Email, &a.Phone,
			&a.Status, &a.IsActive, &a.EmailVerified, &a.CreatedAt, &a.UpdatedAt, &a.Roles); err != nil {
			return nil, 0, fmt.Errorf("accounts: scan: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("accounts: rows: %w", err)
	}
	return out, total, nil
}

// ReplaceRole drops every existing assignment and installs the new one.
// Accounts hold exactly one role at a time.
func (r *PGRepository) ReplaceRole(ctx context.Context, accountID, roleID int64) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM account_roles WHERE account_id = $1`, accountID); err != nil {
		return fmt.Errorf("accounts: clear roles: %w", err)
	}
	if _, err := r.db.Exec(ctx,
		`INSERT INTO account_roles (account_id, role_id) VALUES ($1, $2)`, accountID, roleID,
	); err != nil {
		return fmt.Errorf("accounts: assign role: %w", err)
	}
	return nil
}

func (r *PGRepository) ClearRoles(ctx context.Context, accountID int64) (int, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM account_roles WHERE account_id = $1`, accountID)
	if err != nil {
		return 0, fmt.Errorf("accounts: clear roles: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *PGRepository) RoleNames(ctx context.Context, accountID int64) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT ro.name
		FROM account_roles ar
		JOIN roles ro ON ro.id = ar.role_id
		WHERE ar.account_id = $1
		ORDER BY ro.name`, accountID)
	if err != nil {
		return nil, fmt.Errorf("accounts: role names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("accounts: scan role: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (r *PGRepository) TeacherProfile(ctx context.Context, accountID int64) (*TeacherProfile, error) {
	var p TeacherProfile
	err := r.db.QueryRow(ctx, `
		SELECT id, account_id, employee_id, coalesce(qualification, ''), coalesce(specialization, ''), created_at
		FROM teacher_profiles
		WHERE account_id = $1`, accountID,
	).Scan(&p.ID, &p.AccountID, &p.EmployeeID, &p.Qualification, &p.Specialization, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("accounts: teacher profile: %w", err)
	}
	return &p, nil
}

func (r *PGRepository) CreateTeacherProfile(ctx context.Context, p *TeacherProfile) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO teacher_profiles (account_id, employee_id, qualification, specialization)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		p.AccountID, p.EmployeeID, p.Qualification, p.Specialization,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("accounts: create teacher profile: %w", err)
	}
	return nil
}

func (r *PGRepository) UpdateTeacherProfile(ctx context.Context, accountID int64, qualification, specialization string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE teacher_profiles SET qualification = $2, specialization = $3
		WHERE account_id = $1`,
		accountID, qualification, specialization,
	)
	if err != nil {
		return fmt.Errorf("accounts: update teacher profile: %w", err)
	}
	return nil
}

func (r *PGRepository) DeleteTeacherProfile(ctx context.Context, accountID int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM teacher_profiles WHERE account_id = $1`, accountID)
	if err != nil {
		return false, fmt.Errorf("accounts: delete teacher profile: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PGRepository) DeleteSessions(ctx context.Context, accountID int64) (int, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE account_id = $1`, accountID)
	if err != nil {
		return 0, fmt.Errorf("accounts: delete sessions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *PGRepository) RecordAudit(ctx context.Context, e audit.Entry) error {
	return audit.Record(ctx, r.db, e)
}

func translateUnique(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return shared.ErrDuplicateEmail
	}
	return err
}
