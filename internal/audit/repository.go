package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Filters narrows an audit trail listing.
type Filters struct {
	ActorID *int64
	Module  string
	Page    int
	Limit   int
}

// Repository reads the audit trail from Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns entries newest-first along with the total matching count.
func (r *Repository) List(ctx context.Context, f Filters, limit, offset int) ([]Entry, int, error) {
	where := make([]string, 0, 2)
	args := make([]any, 0, 4)

	if f.ActorID != nil {
		args = append(args, *f.ActorID)
		where = append(where, fmt.Sprintf("actor_id = $%d", len(args)))
	}
	if f.Module != "" {
		args = append(args, f.Module)
		where = append(where, fmt.Sprintf("module = $%d", len(args)))
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT count(*) FROM audit_logs"+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("audit: count: %w", err)
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(`
		SELECT id, actor_id, action, module, entity_id, meta, created_at
		FROM audit_logs%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`, clause, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("audit: list: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var (
			e    Entry
			meta []byte
		)
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.Module, &e.EntityID, &meta, &e.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("audit: scan: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Meta); err != nil {
				return nil, 0, fmt.Errorf("audit: decode meta: %w", err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("audit: rows: %w", err)
	}
	return entries, total, nil
}
