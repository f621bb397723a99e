package rbac

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/singleflight"

	"github.com/scholaris-sms/scholaris/internal/shared"
)

// Service resolves roles and effective permissions.
type Service struct {
	pool   *pgxpool.Pool
	cache  *PermissionCache
	logger *slog.Logger
	group  singleflight.Group
}

// NewService constructs a Service. cache may be nil, which disables caching.
func NewService(pool *pgxpool.Pool, cache *PermissionCache, logger *slog.Logger) *Service {
	return &Service{pool: pool, cache: cache, logger: logger}
}

// GetRoleByName fetches a role by exact name.
func (s *Service) GetRoleByName(ctx context.Context, name string) (Role, error) {
	var role Role
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, description, is_system, created_at, updated_at FROM roles WHERE name = $1`,
		name,
	).Scan(&role.ID, &role.Name, &role.Description, &role.System, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.ErrUnknownRole
		}
		return Role{}, err
	}
	return role, nil
}

// ListPermissions returns the full catalog ordered by name.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, action, subject, name, description FROM permissions ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Action, &p.Subject, &p.Name, &p.Description); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// EffectivePermissions returns deduplicated permission names for an account.
// Results are cached; concurrent lookups for the same account collapse into
// one database query.
func (s *Service) EffectivePermissions(ctx context.Context, accountID int64) ([]string, error) {
	if perms, ok := s.cache.Get(ctx, accountID); ok {
		return perms, nil
	}
	key := strconv.FormatInt(accountID, 10)
	result, err, _ := s.group.Do(key, func() (any, error) {
		perms, err := s.queryEffectivePermissions(ctx, accountID)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Set(ctx, accountID, perms); err != nil && s.logger != nil {
			s.logger.Warn("cache permissions", slog.Any("error", err))
		}
		return perms, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]string), nil
}

// InvalidatePermissions drops the cached set after a role assignment change.
func (s *Service) InvalidatePermissions(ctx context.Context, accountID int64) {
	if err := s.cache.Invalidate(ctx, accountID); err != nil && s.logger != nil {
		s.logger.Warn("invalidate permission cache", slog.Any("error", err))
	}
}

func (s *Service) queryEffectivePermissions(ctx context.Context, accountID int64) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT p.name
		FROM account_roles ar
		JOIN role_permissions rp ON rp.role_id = ar.role_id
		JOIN permissions p ON p.id = rp.permission_id
		WHERE ar.account_id = $1
		ORDER BY p.name`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	perms := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		perms = append(perms, name)
	}
	return perms, rows.Err()
}
