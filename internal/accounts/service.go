package accounts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/scholaris-sms/scholaris/internal/audit"
	"github.com/scholaris-sms/scholaris/internal/rbac"
	"github.com/scholaris-sms/scholaris/internal/shared"
)

const moduleName = "accounts"

// RoleDirectory resolves role selectors against the registry.
type RoleDirectory interface {
	GetRoleByName(ctx context.Context, name string) (rbac.Role, error)
}

// PermissionInvalidator drops cached permission sets after assignment changes.
type PermissionInvalidator interface {
	InvalidatePermissions(ctx context.Context, accountID int64)
}

// CreateInput carries a new account request. Role names the single role the
// account will hold.
type CreateInput struct {
	FirstName      string
	LastName       string
	Email          string
	Phone          string
	Password       string
	Role           string
	Status         Status
	Qualification  string
	Specialization string
}

// UpdateInput carries a partial account update. Nil fields are left untouched.
type UpdateInput struct {
	FirstName      *string
	LastName       *string
	Email          *string
	Phone          *string
	Password       *string
	Status         *Status
	Role           *string
	Qualification  *string
	Specialization *string
}

// Service implements the account lifecycle. Every mutation runs its writes,
// the teacher-profile sync and the audit row in one transaction.
type Service struct {
	repo        Repository
	roles       RoleDirectory
	invalidator PermissionInvalidator
	logger      *slog.Logger
	now         func() time.Time
}

func NewService(repo Repository, roles RoleDirectory, invalidator PermissionInvalidator, logger *slog.Logger) *Service {
	return &Service{repo: repo, roles: roles, invalidator: invalidator, logger: logger, now: time.Now}
}

// Create provisions an account with its role assignment and, for teachers,
// the companion profile.
func (s *Service) Create(ctx context.Context, actorID *int64, in CreateInput) (Account, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	status := in.Status
	if status == "" {
		status = StatusActive
	}
	if !status.Valid() {
		return Account{}, shared.NewValidationError(map[string]string{"status": "unknown status"})
	}

	role, err := s.roles.GetRoleByName(ctx, in.Role)
	if err != nil {
		return Account{}, err
	}

	exists, err := s.repo.EmailExists(ctx, email)
	if err != nil {
		return Account{}, err
	}
	if exists {
		return Account{}, shared.ErrDuplicateEmail
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return Account{}, fmt.Errorf("accounts: hash password: %w", err)
	}

	var out Account
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		a := Account{
			FirstName:    strings.TrimSpace(in.FirstName),
			LastName:     strings.TrimSpace(in.LastName),
			Email:        email,
			Phone:        strings.TrimSpace(in.Phone),
			PasswordHash: string(hash),
			Status:       status,
			IsActive:     status == StatusActive,
		}
		if err := tx.Create(ctx, &a); err != nil {
			return err
		}
		if err := tx.ReplaceRole(ctx, a.ID, role.ID); err != nil {
			return err
		}
		a.Roles = []string{role.Name}

		if role.Name == rbac.RoleTeacher {
			p := &TeacherProfile{
				AccountID:      a.ID,
				EmployeeID:     NewEmployeeID(s.now()),
				Qualification:  in.Qualification,
				Specialization: in.Specialization,
			}
			if err := tx.CreateTeacherProfile(ctx, p); err != nil {
				return err
			}
			a.TeacherProfile = p
		}

		if err := tx.RecordAudit(ctx, audit.Entry{
			ActorID:  actorID,
			Action:   audit.ActionAccountCreate,
			Module:   moduleName,
			EntityID: &a.ID,
			Meta: map[string]any{
				"email":          a.Email,
				"role":           role.Name,
				"teacherProfile": a.TeacherProfile != nil,
			},
		}); err != nil {
			return err
		}

		out = a
		return nil
	})
	if err != nil {
		return Account{}, err
	}

	s.logger.Info("account created",
		slog.Int64("accountId", out.ID),
		slog.String("role", role.Name),
	)
	return out, nil
}

// Update applies a partial change. Role replacement and teacher-profile sync
// are part of the same transaction as the field update.
func (s *Service) Update(ctx context.Context, actorID *int64, id int64, in UpdateInput) (Account, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return Account{}, err
	}
	currentRoles, err := s.repo.RoleNames(ctx, id)
	if err != nil {
		return Account{}, err
	}

	changed := make([]string, 0, 4)

	if in.FirstName != nil {
		existing.FirstName = strings.TrimSpace(*in.FirstName)
		changed = append(changed, "firstName")
	}
	if in.LastName != nil {
		existing.LastName = strings.TrimSpace(*in.LastName)
		changed = append(changed, "lastName")
	}
	if in.Phone != nil {
		existing.Phone = strings.TrimSpace(*in.Phone)
		changed = append(changed, "phone")
	}
	if in.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		if email != existing.Email {
			exists, err := s.repo.EmailExists(ctx, email)
			if err != nil {
				return Account{}, err
			}
			if exists {
				return Account{}, shared.ErrDuplicateEmail
			}
			existing.Email = email
			changed = append(changed, "email")
		}
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return Account{}, shared.NewValidationError(map[string]string{"status": "unknown status"})
		}
		existing.Status = *in.Status
		existing.IsActive = *in.Status == StatusActive
		changed = append(changed, "status")
	}
	if in.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*in.Password), bcrypt.DefaultCost)
		if err != nil {
			return Account{}, fmt.Errorf("accounts: hash password: %w", err)
		}
		existing.PasswordHash = string(hash)
		changed = append(changed, "password")
	}

	var newRole *rbac.Role
	if in.Role != nil && !containsRole(currentRoles, *in.Role) {
		role, err := s.roles.GetRoleByName(ctx, *in.Role)
		if err != nil {
			return Account{}, err
		}
		newRole = &role
		changed = append(changed, "role")
	}

	effectiveRoles := currentRoles
	if newRole != nil {
		effectiveRoles = []string{newRole.Name}
	}
	holdsTeacher := containsRole(effectiveRoles, rbac.RoleTeacher)

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		if err := tx.Update(ctx, &existing); err != nil {
			return err
		}
		if newRole != nil {
			if err := tx.ReplaceRole(ctx, id, newRole.ID); err != nil {
				return err
			}
		}
		if err := s.syncTeacherProfile(ctx, tx, id, holdsTeacher, in.Qualification, in.Specialization, &changed); err != nil {
			return err
		}
		if len(changed) == 0 {
			return nil
		}
		return tx.RecordAudit(ctx, audit.Entry{
			ActorID:  actorID,
			Action:   audit.ActionAccountUpdate,
			Module:   moduleName,
			EntityID: &id,
			Meta:     map[string]any{"changed": changed},
		})
	})
	if err != nil {
		return Account{}, err
	}

	if newRole != nil {
		s.invalidator.InvalidatePermissions(ctx, id)
	}
	return s.Get(ctx, id)
}

// Delete soft-deletes an account. The role assignments, teacher profile and
// live sessions go with it; the row itself stays for the audit trail and to
// keep the email reserved.
func (s *Service) Delete(ctx context.Context, actorID *int64, id int64) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		hadProfile, err := tx.DeleteTeacherProfile(ctx, id)
		if err != nil {
			return err
		}
		rolesRemoved, err := tx.ClearRoles(ctx, id)
		if err != nil {
			return err
		}
		sessions, err := tx.DeleteSessions(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.SoftDelete(ctx, id); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, audit.Entry{
			ActorID:  actorID,
			Action:   audit.ActionAccountDelete,
			Module:   moduleName,
			EntityID: &id,
			Meta: map[string]any{
				"hadTeacherProfile": hadProfile,
				"rolesRemoved":      rolesRemoved,
				"sessionsRevoked":   sessions,
			},
		})
	})
	if err != nil {
		return err
	}

	s.invalidator.InvalidatePermissions(ctx, id)
	s.logger.Info("account deleted", slog.Int64("accountId", id))
	return nil
}

// VerifyAndFix checks the teacher-profile invariant for one account and
// repairs any drift it finds.
func (s *Service) VerifyAndFix(ctx context.Context, actorID *int64, id int64) (VerifyReport, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return VerifyReport{}, err
	}
	roles, err := s.repo.RoleNames(ctx, id)
	if err != nil {
		return VerifyReport{}, err
	}
	profile, err := s.repo.TeacherProfile(ctx, id)
	if err != nil {
		return VerifyReport{}, err
	}

	report := VerifyReport{
		AccountID:        id,
		HoldsTeacherRole: containsRole(roles, rbac.RoleTeacher),
		HadProfile:       profile != nil,
	}
	if report.Consistent() {
		return report, nil
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		if report.HoldsTeacherRole {
			p := &TeacherProfile{AccountID: id, EmployeeID: NewEmployeeID(s.now())}
			if err := tx.CreateTeacherProfile(ctx, p); err != nil {
				return err
			}
			report.ProfileCreated = true
		} else {
			deleted, err := tx.DeleteTeacherProfile(ctx, id)
			if err != nil {
				return err
			}
			report.ProfileDeleted = deleted
		}
		return tx.RecordAudit(ctx, audit.Entry{
			ActorID:  actorID,
			Action:   audit.ActionAccountVerify,
			Module:   moduleName,
			EntityID: &id,
			Meta: map[string]any{
				"profileCreated": report.ProfileCreated,
				"profileDeleted": report.ProfileDeleted,
			},
		})
	})
	if err != nil {
		return VerifyReport{}, err
	}
	return report, nil
}

// Get returns one live account with its role names and teacher profile.
func (s *Service) Get(ctx context.Context, id int64) (Account, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return Account{}, err
	}
	if a.Roles, err = s.repo.RoleNames(ctx, id); err != nil {
		return Account{}, err
	}
	if a.Roles == nil {
		a.Roles = []string{}
	}
	if a.TeacherProfile, err = s.repo.TeacherProfile(ctx, id); err != nil {
		return Account{}, err
	}
	return a, nil
}

// List returns a filtered page of live accounts.
func (s *Service) List(ctx context.Context, f ListFilters) (shared.Page[Account], error) {
	meta := shared.NewPagination(f.Page, f.Limit, 0)
	items, total, err := s.repo.List(ctx, f, meta.Limit, meta.Offset())
	if err != nil {
		return shared.Page[Account]{}, err
	}
	return shared.NewPage(items, shared.NewPagination(meta.Page, meta.Limit, total)), nil
}

func (s *Service) syncTeacherProfile(ctx context.Context, tx Repository, id int64, holdsTeacher bool, qualification, specialization *string, changed *[]string) error {
	profile, err := tx.TeacherProfile(ctx, id)
	if err != nil {
		return err
	}

	switch {
	case holdsTeacher && profile == nil:
		p := &TeacherProfile{AccountID: id, EmployeeID: NewEmployeeID(s.now())}
		if qualification != nil {
			p.Qualification = *qualification
		}
		if specialization != nil {
			p.Specialization = *specialization
		}
		if err := tx.CreateTeacherProfile(ctx, p); err != nil {
			return err
		}
		*changed = append(*changed, "teacherProfile:created")
	case !holdsTeacher && profile != nil:
		if _, err := tx.DeleteTeacherProfile(ctx, id); err != nil {
			return err
		}
		*changed = append(*changed, "teacherProfile:deleted")
	case holdsTeacher && (qualification != nil || specialization != nil):
		q, sp := profile.Qualification, profile.Specialization
		if qualification != nil {
			q = *qualification
		}
		if specialization != nil {
			sp = *specialization
		}
		if err := tx.UpdateTeacherProfile(ctx, id, q, sp); err != nil {
			return err
		}
		*changed = append(*changed, "teacherProfile:updated")
	}
	return nil
}

func containsRole(roles []string, name string) bool {
	for _, r := range roles {
		if r == name {
			return true
		}
	}
	return false
}
