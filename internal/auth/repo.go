package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scholaris-sms/scholaris/internal/shared"
)

// Repository provides PostgreSQL backed persistence for login and sessions.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FindByEmail loads a live account by normalized email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := r.pool.QueryRow(ctx, `
		SELECT id, first_name, last_name, email, password_hash, status, is_active
		FROM accounts
		WHERE lower(email) = lower($1) AND deleted_at IS NULL`,
		strings.TrimSpace(email),
	).Scan(&user.ID, &user.FirstName, &user.LastName, &user.Email, &user.PasswordHash, &user.Status, &user.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// RoleNames returns the role names assigned to the account.
func (r *Repository) RoleNames(ctx context.Context, accountID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT ro.name
		FROM account_roles ar
		JOIN roles ro ON ro.id = ar.role_id
		WHERE ar.account_id = $1
		ORDER BY ro.name`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// CreateSession persists the session metadata for an issued credential.
func (r *Repository) CreateSession(ctx context.Context, id string, accountID int64, expiresAt time.Time, ip, userAgent string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO sessions (id, account_id, expires_at, ip, user_agent)
		VALUES ($1, $2, $3, $4, $5)`, id, accountID, expiresAt, ip, userAgent)
	return err
}

// DeleteSession removes one session record.
func (r *Repository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}
