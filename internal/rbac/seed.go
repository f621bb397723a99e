package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// SeedStore abstracts the upserts the bootstrap performs so seeding stays
// testable without a database.
type SeedStore interface {
	UpsertPermission(ctx context.Context, action Action, subject Subject, name, description string) (int64, error)
	UpsertRole(ctx context.Context, name, description string, system bool) (int64, error)
	EnsureRolePermission(ctx context.Context, roleID, permissionID int64) error
	AccountEmailExists(ctx context.Context, email string) (bool, error)
	CreateAccountWithRole(ctx context.Context, firstName, lastName, email, passwordHash string, roleID int64) error
}

// BootstrapAdmin configures the optional highest-privilege account created at seed time.
type BootstrapAdmin struct {
	Email    string
	Password string
}

// Seeder idempotently installs the permission catalog, the role registry and
// the role-permission linkages. Re-running it is a no-op when nothing changed.
type Seeder struct {
	store  SeedStore
	logger *slog.Logger
}

// NewSeeder constructs a Seeder.
func NewSeeder(store SeedStore, logger *slog.Logger) *Seeder {
	return &Seeder{store: store, logger: logger}
}

// Run seeds the catalog and roles, then the bootstrap admin when configured.
// Any invariant violation aborts the bootstrap; this never runs on the
// request path.
func (s *Seeder) Run(ctx context.Context, admin *BootstrapAdmin) error {
	permIDs, err := s.seedPermissions(ctx)
	if err != nil {
		return fmt.Errorf("seed permissions: %w", err)
	}
	if err := s.seedRoles(ctx, permIDs, admin); err != nil {
		return err
	}
	return nil
}

func (s *Seeder) seedPermissions(ctx context.Context) (map[string]int64, error) {
	title := cases.Title(language.English)
	ids := make(map[string]int64, len(Actions())*len(Subjects()))
	for _, subject := range Subjects() {
		for _, action := range Actions() {
			name := PermissionName(action, subject)
			description := title.String(string(action)) + " " + strings.ReplaceAll(string(subject), "_", " ")
			id, err := s.store.UpsertPermission(ctx, action, subject, name, description)
			if err != nil {
				return nil, fmt.Errorf("permission %s: %w", name, err)
			}
			ids[name] = id
		}
	}
	if s.logger != nil {
		s.logger.Info("permission catalog ready", slog.Int("count", len(ids)))
	}
	return ids, nil
}

func (s *Seeder) seedRoles(ctx context.Context, permIDs map[string]int64, admin *BootstrapAdmin) error {
	for _, def := range RoleDefinitions() {
		roleID, err := s.store.UpsertRole(ctx, def.Name, def.Description, def.System)
		if err != nil {
			return fmt.Errorf("role %s: %w", def.Name, err)
		}
		for _, subject := range Subjects() {
			for _, action := range Actions() {
				if !def.Grants(action, subject) {
					continue
				}
				permID, ok := permIDs[PermissionName(action, subject)]
				if !ok {
					return fmt.Errorf("role %s: permission %s missing from catalog", def.Name, PermissionName(action, subject))
				}
				if err := s.store.EnsureRolePermission(ctx, roleID, permID); err != nil {
					return fmt.Errorf("role %s: link %s: %w", def.Name, PermissionName(action, subject), err)
				}
			}
		}
		if def.Name == RoleSuperAdmin && admin != nil {
			if err := s.seedAdminAccount(ctx, roleID, admin); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Seeder) seedAdminAccount(ctx context.Context, roleID int64, admin *BootstrapAdmin) error {
	if admin.Email == "" || admin.Password == "" {
		return errors.New("bootstrap admin requires both email and password")
	}
	exists, err := s.store.AccountEmailExists(ctx, strings.ToLower(admin.Email))
	if err != nil {
		return fmt.Errorf("bootstrap admin lookup: %w", err)
	}
	if exists {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(admin.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash bootstrap password: %w", err)
	}
	if err := s.store.CreateAccountWithRole(ctx, "System", "Administrator", strings.ToLower(admin.Email), string(hash), roleID); err != nil {
		return fmt.Errorf("create bootstrap admin: %w", err)
	}
	if s.logger != nil {
		s.logger.Info("bootstrap admin created", slog.String("email", admin.Email))
	}
	return nil
}

// PGSeedStore implements SeedStore on PostgreSQL with natural-key upserts.
type PGSeedStore struct {
	pool *pgxpool.Pool
}

// NewPGSeedStore constructs the store.
func NewPGSeedStore(pool *pgxpool.Pool) *PGSeedStore {
	return &PGSeedStore{pool: pool}
}

// UpsertPermission inserts or refreshes one catalog entry keyed on (action, subject).
func (s *PGSeedStore) UpsertPermission(ctx context.Context, action Action, subject Subject, name, description string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO permissions (action, subject, name, description)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (action, subject) DO UPDATE SET description = EXCLUDED.description
		RETURNING id`, action, subject, name, description).Scan(&id)
	return id, err
}

// UpsertRole inserts or refreshes one role keyed on name. The system flag is
// set on insert and never cleared by a re-run.
func (s *PGSeedStore) UpsertRole(ctx context.Context, name, description string, system bool) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO roles (name, description, is_system)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description, updated_at = NOW()
		RETURNING id`, name, description, system).Scan(&id)
	return id, err
}

// EnsureRolePermission links a role to a permission, keyed on the pair.
func (s *PGSeedStore) EnsureRolePermission(ctx context.Context, roleID, permissionID int64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO role_permissions (role_id, permission_id)
		VALUES ($1, $2)
		ON CONFLICT (role_id, permission_id) DO NOTHING`, roleID, permissionID)
	return err
}

// AccountEmailExists checks every account row, soft-deleted included.
func (s *PGSeedStore) AccountEmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE lower(email) = lower($1))`, email).Scan(&exists)
	return exists, err
}

// CreateAccountWithRole inserts the bootstrap account and its role assignment atomically.
func (s *PGSeedStore) CreateAccountWithRole(ctx context.Context, firstName, lastName, email, passwordHash string, roleID int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	var accountID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO accounts (first_name, last_name, email, password_hash, status, is_active, email_verified)
		VALUES ($1, $2, $3, $4, 'ACTIVE', TRUE, TRUE)
		RETURNING id`, firstName, lastName, email, passwordHash).Scan(&accountID)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO account_roles (account_id, role_id) VALUES ($1, $2)`, accountID, roleID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
