package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is the slice of pgx shared by pgxpool.Pool and pgx.Tx. Passing a
// transaction makes the audit row atomic with the business change it records.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Record inserts an audit entry using the given executor.
func Record(ctx context.Context, db Execer, e Entry) error {
	var meta []byte
	if e.Meta != nil {
		var err error
		meta, err = json.Marshal(e.Meta)
		if err != nil {
			return fmt.Errorf("audit: marshal meta: %w", err)
		}
	}
	_, err := db.Exec(ctx, `
		INSERT INTO audit_logs (actor_id, action, module, entity_id, meta)
		VALUES ($1, $2, $3, $4, $5)`,
		e.ActorID, e.Action, e.Module, e.EntityID, meta,
	)
	if err != nil {
		return fmt.Errorf("audit: record %s: %w", e.Action, err)
	}
	return nil
}
