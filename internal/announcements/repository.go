package announcements

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scholaris-sms/scholaris/internal/shared"
)

// Repository is the persistence port for announcements.
type Repository interface {
	List(ctx context.Context, publishedOnly bool) ([]Announcement, error)
	Get(ctx context.Context, id int64) (Announcement, error)
	Create(ctx context.Context, a *Announcement) error
	Update(ctx context.Context, a Announcement) error
	Delete(ctx context.Context, id int64) error
	MarkPublished(ctx context.Context, id int64, at time.Time) error
	RecipientEmails(ctx context.Context, audience Audience) ([]string, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const announcementColumns = `id, title, body, audience, author_id, published_at, created_at, updated_at`

func (r *repository) List(ctx context.Context, publishedOnly bool) ([]Announcement, error) {
	query := `SELECT ` + announcementColumns + ` FROM announcements`
	if publishedOnly {
		query += ` WHERE published_at IS NOT NULL`
	}
	query += ` ORDER BY coalesce(published_at, created_at) DESC, id DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("announcements: list: %w", err)
	}
	defer rows.Close()

	out := []Announcement{}
	for rows.Next() {
		a, err := scanAnnouncement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Announcement, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+announcementColumns+` FROM announcements WHERE id = $1`, id)
	a, err := scanAnnouncement(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Announcement{}, shared.ErrNotFound
	}
	return a, err
}

func (r *repository) Create(ctx context.Context, a *Announcement) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO announcements (title, body, audience, author_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`,
		a.Title, a.Body, a.Audience, a.AuthorID,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("announcements: create: %w", err)
	}
	return nil
}

func (r *repository) Update(ctx context.Context, a Announcement) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE announcements SET title = $2, body = $3, audience = $4, updated_at = now()
		WHERE id = $1`,
		a.ID, a.Title, a.Body, a.Audience,
	)
	if err != nil {
		return fmt.Errorf("announcements: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM announcements WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("announcements: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) MarkPublished(ctx context.Context, id int64, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE announcements SET published_at = $2, updated_at = now()
		WHERE id = $1 AND published_at IS NULL`,
		id, at,
	)
	if err != nil {
		return fmt.Errorf("announcements: publish: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyPublished
	}
	return nil
}

// RecipientEmails resolves active account emails for the audience.
func (r *repository) RecipientEmails(ctx context.Context, audience Audience) ([]string, error) {
	query := `
		SELECT DISTINCT a.email
		FROM accounts a
		WHERE a.deleted_at IS NULL AND a.is_active`
	if audience == AudienceTeachers {
		query += ` AND EXISTS (
			SELECT 1 FROM account_roles ar
			JOIN roles r ON r.id = ar.role_id
			WHERE ar.account_id = a.id AND r.name = 'Teacher')`
	}

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("announcements: recipients: %w", err)
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("announcements: scan recipient: %w", err)
		}
		emails = append(emails, email)
	}
	return emails, rows.Err()
}

func scanAnnouncement(row pgx.Row) (Announcement, error) {
	var a Announcement
	err := row.Scan(&a.ID, &a.Title, &a.Body, &a.Audience, &a.AuthorID,
		&a.PublishedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return Announcement{}, fmt.Errorf("announcements: scan: %w", err)
	}
	return a, err
}
