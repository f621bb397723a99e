package roles

import (
	"context"
	"log/slog"
	"strings"

	"github.com/scholaris-sms/scholaris/internal/audit"
	"github.com/scholaris-sms/scholaris/internal/rbac"
	"github.com/scholaris-sms/scholaris/internal/shared"
)

const moduleName = "roles"

// PermissionInvalidator drops cached permission sets after grant changes.
type PermissionInvalidator interface {
	InvalidatePermissions(ctx context.Context, accountID int64)
}

// CreateInput carries a new custom role.
type CreateInput struct {
	Name          string
	Description   string
	PermissionIDs []int64
}

// UpdateInput carries a partial role change. Nil fields are left untouched.
type UpdateInput struct {
	Name          *string
	Description   *string
	PermissionIDs []int64
}

// Service manages the role registry. System-flagged roles are immutable.
type Service struct {
	repo        Repository
	invalidator PermissionInvalidator
	logger      *slog.Logger
}

func NewService(repo Repository, invalidator PermissionInvalidator, logger *slog.Logger) *Service {
	return &Service{repo: repo, invalidator: invalidator, logger: logger}
}

// List returns every role with its grants and assignment count.
func (s *Service) List(ctx context.Context) ([]Detail, error) {
	roles, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if roles == nil {
		roles = []Detail{}
	}
	return roles, nil
}

// Get returns one role with its grants.
func (s *Service) Get(ctx context.Context, id int64) (Detail, error) {
	role, err := s.repo.Get(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	perms, err := s.repo.PermissionNames(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	accounts, err := s.repo.AssignmentCount(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	return Detail{Role: role, Permissions: perms, Accounts: accounts}, nil
}

// Create registers a custom role with its permission grants.
func (s *Service) Create(ctx context.Context, actorID *int64, in CreateInput) (Detail, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Detail{}, shared.NewValidationError(map[string]string{"name": "required"})
	}

	role := rbac.Role{Name: name, Description: strings.TrimSpace(in.Description)}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		if err := tx.Create(ctx, &role); err != nil {
			return err
		}
		if err := tx.SetPermissions(ctx, role.ID, in.PermissionIDs); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, audit.Entry{
			ActorID:  actorID,
			Action:   audit.ActionRoleCreate,
			Module:   moduleName,
			EntityID: &role.ID,
			Meta:     map[string]any{"name": role.Name, "permissions": len(in.PermissionIDs)},
		})
	})
	if err != nil {
		return Detail{}, err
	}

	s.logger.Info("role created", slog.String("name", role.Name))
	return s.Get(ctx, role.ID)
}

// Update changes a custom role. System roles reject any mutation.
func (s *Service) Update(ctx context.Context, actorID *int64, id int64, in UpdateInput) (Detail, error) {
	role, err := s.repo.Get(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	if role.System {
		return Detail{}, shared.ErrSystemRole
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return Detail{}, shared.NewValidationError(map[string]string{"name": "required"})
		}
		role.Name = name
	}
	if in.Description != nil {
		role.Description = strings.TrimSpace(*in.Description)
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		if err := tx.Update(ctx, role); err != nil {
			return err
		}
		if in.PermissionIDs != nil {
			if err := tx.SetPermissions(ctx, id, in.PermissionIDs); err != nil {
				return err
			}
		}
		return tx.RecordAudit(ctx, audit.Entry{
			ActorID:  actorID,
			Action:   audit.ActionRoleUpdate,
			Module:   moduleName,
			EntityID: &id,
			Meta:     map[string]any{"name": role.Name},
		})
	})
	if err != nil {
		return Detail{}, err
	}

	if in.PermissionIDs != nil {
		s.invalidateHolders(ctx, id)
	}
	return s.Get(ctx, id)
}

// Delete removes a custom role that no account holds.
func (s *Service) Delete(ctx context.Context, actorID *int64, id int64) error {
	role, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if role.System {
		return shared.ErrSystemRole
	}
	assigned, err := s.repo.AssignmentCount(ctx, id)
	if err != nil {
		return err
	}
	if assigned > 0 {
		return ErrRoleInUse
	}

	return s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		if err := tx.SetPermissions(ctx, id, nil); err != nil {
			return err
		}
		if err := tx.Delete(ctx, id); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, audit.Entry{
			ActorID:  actorID,
			Action:   audit.ActionRoleDelete,
			Module:   moduleName,
			EntityID: &id,
			Meta:     map[string]any{"name": role.Name},
		})
	})
}

func (s *Service) invalidateHolders(ctx context.Context, roleID int64) {
	ids, err := s.repo.AccountIDs(ctx, roleID)
	if err != nil {
		s.logger.Warn("list role holders", slog.Any("error", err))
		return
	}
	for _, id := range ids {
		s.invalidator.InvalidatePermissions(ctx, id)
	}
}
