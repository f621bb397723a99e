package roles

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scholaris-sms/scholaris/internal/audit"
	platformdb "github.com/scholaris-sms/scholaris/internal/platform/db"
	"github.com/scholaris-sms/scholaris/internal/rbac"
	"github.com/scholaris-sms/scholaris/internal/shared"
)

// Repository is the persistence port for the role registry.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error

	List(ctx context.Context) ([]Detail, error)
	Get(ctx context.Context, id int64) (rbac.Role, error)
	Create(ctx context.Context, r *rbac.Role) error
	Update(ctx context.Context, r rbac.Role) error
	Delete(ctx context.Context, id int64) error

	SetPermissions(ctx context.Context, roleID int64, permissionIDs []int64) error
	PermissionNames(ctx context.Context, roleID int64) ([]string, error)
	AssignmentCount(ctx context.Context, roleID int64) (int, error)
	AccountIDs(ctx context.Context, roleID int64) ([]int64, error)
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

func (r *PGRepository) List(ctx context.Context) ([]Detail, error) {
	rows, err := r.db.Query(ctx, `
		SELECT ro.id, ro.name, ro.description, ro.is_system, ro.created_at, ro.updated_at,
		       coalesce(array_agg(DISTINCT p.name) FILTER (WHERE p.name IS NOT NULL), '{}'),
		       count(DISTINCT ar.account_id)
		FROM roles ro
		LEFT JOIN role_permissions rp ON rp.role_id = ro.id
		LEFT JOIN permissions p ON p.id = rp.permission_id
		LEFT JOIN account_roles ar ON ar.role_id = ro.id
		GROUP BY ro.id
		ORDER BY ro.name`)
	if err != nil {
		return nil, fmt.Errorf("roles: list: %w", err)
	}
	defer rows.Close()

	var out []Detail
	for rows.Next() {
		var d Detail
		if err := rows.Scan(&d.ID, &d.Name, &d.Description, &d.System, &d.CreatedAt, &d.UpdatedAt,
			&d.Permissions, &d.Accounts); err != nil {
			return nil, fmt.Errorf("roles: scan: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *PGRepository) Get(ctx context.Context, id int64) (rbac.Role, error) {
	var role rbac.Role
	err := r.db.QueryRow(ctx,
		`SELECT id, name, description, is_system, created_at, updated_at FROM roles WHERE id = $1`, id,
	).Scan(&role.ID, &role.Name, &role.Description, &role.System, &role.CreatedAt, &role.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return rbac.Role{}, shared.ErrNotFound
	}
	if err != nil {
		return rbac.Role{}, fmt.Errorf("roles: get: %w", err)
	}
	return role, nil
}

func (r *PGRepository) Create(ctx context.Context, role *rbac.Role) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO roles (name, description, is_system)
		VALUES ($1, $2, FALSE)
		RETURNING id, created_at, updated_at`,
		role.Name, role.Description,
	).Scan(&role.ID, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return fmt.Errorf("roles: create: %w", translateUnique(err))
	}
	return nil
}

func (r *PGRepository) Update(ctx context.Context, role rbac.Role) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE roles SET name = $2, description = $3, updated_at = now() WHERE id = $1`,
		role.ID, role.Name, role.Description,
	)
	if err != nil {
		return fmt.Errorf("roles: update: %w", translateUnique(err))
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("roles: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SetPermissions replaces the role's grant set.
func (r *PGRepository) SetPermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
		return fmt.Errorf("roles: clear permissions: %w", err)
	}
	for _, pid := range permissionIDs {
		tag, err := r.db.Exec(ctx, `
			INSERT INTO role_permissions (role_id, permission_id)
			SELECT $1, id FROM permissions WHERE id = $2`, roleID, pid)
		if err != nil {
			return fmt.Errorf("roles: grant permission: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return shared.NewValidationError(map[string]string{"permissionIds": "unknown permission id"})
		}
	}
	return nil
}

func (r *PGRepository) PermissionNames(ctx context.Context, roleID int64) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT p.name
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = $1
		ORDER BY p.name`, roleID)
	if err != nil {
		return nil, fmt.Errorf("roles: permission names: %w", err)
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("roles: scan permission: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (r *PGRepository) AssignmentCount(ctx context.Context, roleID int64) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT count(*) FROM account_roles WHERE role_id = $1`, roleID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("roles: assignment count: %w", err)
	}
	return n, nil
}

func (r *PGRepository) AccountIDs(ctx context.Context, roleID int64) ([]int64, error) {
	rows, err := r.db.Query(ctx,
		`SELECT account_id FROM account_roles WHERE role_id = $1`, roleID)
	if err != nil {
		return nil, fmt.Errorf("roles: account ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("roles: scan account id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *PGRepository) RecordAudit(ctx context.Context, e audit.Entry) error {
	return audit.Record(ctx, r.db, e)
}

func translateUnique(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateName
	}
	return err
}
