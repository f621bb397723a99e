package roles

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholaris-sms/scholaris/internal/audit"
	"github.com/scholaris-sms/scholaris/internal/rbac"
	"github.com/scholaris-sms/scholaris/internal/shared"
)

type memRoleRepo struct {
	roles       map[int64]rbac.Role
	grants      map[int64][]int64
	assignments map[int64][]int64 // role id -> account ids
	auditLog    []audit.Entry
	nextID      int64
}

func newMemRoleRepo() *memRoleRepo {
	return &memRoleRepo{
		roles:       map[int64]rbac.Role{},
		grants:      map[int64][]int64{},
		assignments: map[int64][]int64{},
	}
}

func (m *memRoleRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, m)
}

func (m *memRoleRepo) List(context.Context) ([]Detail, error) {
	var out []Detail
	for id, r := range m.roles {
		out = append(out, Detail{Role: r, Accounts: len(m.assignments[id])})
	}
	return out, nil
}

func (m *memRoleRepo) Get(_ context.Context, id int64) (rbac.Role, error) {
	r, ok := m.roles[id]
	if !ok {
		return rbac.Role{}, shared.ErrNotFound
	}
	return r, nil
}

func (m *memRoleRepo) Create(_ context.Context, r *rbac.Role) error {
	for _, existing := range m.roles {
		if existing.Name == r.Name {
			return ErrDuplicateName
		}
	}
	m.nextID++
	r.ID = m.nextID
	m.roles[r.ID] = *r
	return nil
}

func (m *memRoleRepo) Update(_ context.Context, r rbac.Role) error {
	if _, ok := m.roles[r.ID]; !ok {
		return shared.ErrNotFound
	}
	m.roles[r.ID] = r
	return nil
}

func (m *memRoleRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.roles[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.roles, id)
	return nil
}

func (m *memRoleRepo) SetPermissions(_ context.Context, roleID int64, ids []int64) error {
	m.grants[roleID] = ids
	return nil
}

func (m *memRoleRepo) PermissionNames(_ context.Context, roleID int64) ([]string, error) {
	names := make([]string, 0, len(m.grants[roleID]))
	for range m.grants[roleID] {
		names = append(names, "granted")
	}
	return names, nil
}

func (m *memRoleRepo) AssignmentCount(_ context.Context, roleID int64) (int, error) {
	return len(m.assignments[roleID]), nil
}

func (m *memRoleRepo) AccountIDs(_ context.Context, roleID int64) ([]int64, error) {
	return m.assignments[roleID], nil
}

func (m *memRoleRepo) RecordAudit(_ context.Context, e audit.Entry) error {
	m.auditLog = append(m.auditLog, e)
	return nil
}

type memInvalidator struct{ invalidated []int64 }

func (m *memInvalidator) InvalidatePermissions(_ context.Context, accountID int64) {
	m.invalidated = append(m.invalidated, accountID)
}

func newTestService(repo *memRoleRepo) (*Service, *memInvalidator) {
	inv := &memInvalidator{}
	return NewService(repo, inv, slog.New(slog.NewTextHandler(io.Discard, nil))), inv
}

func TestCreateRoleRecordsGrantsAndAudit(t *testing.T) {
	repo := newMemRoleRepo()
	svc, _ := newTestService(repo)

	role, err := svc.Create(context.Background(), nil, CreateInput{
		Name:          "Librarian",
		PermissionIDs: []int64{1, 2},
	})
	require.NoError(t, err)

	assert.Equal(t, "Librarian", role.Name)
	assert.Len(t, repo.grants[role.ID], 2)
	require.Len(t, repo.auditLog, 1)
	assert.Equal(t, audit.ActionRoleCreate, repo.auditLog[0].Action)
}

func TestCreateRoleRequiresName(t *testing.T) {
	repo := newMemRoleRepo()
	svc, _ := newTestService(repo)

	_, err := svc.Create(context.Background(), nil, CreateInput{Name: "  "})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestUpdateSystemRoleRejected(t *testing.T) {
	repo := newMemRoleRepo()
	repo.nextID = 1
	repo.roles[1] = rbac.Role{ID: 1, Name: rbac.RoleAdmin, System: true}
	svc, _ := newTestService(repo)

	name := "Renamed"
	_, err := svc.Update(context.Background(), nil, 1, UpdateInput{Name: &name})
	assert.ErrorIs(t, err, shared.ErrSystemRole)
	assert.Equal(t, rbac.RoleAdmin, repo.roles[1].Name)
}

func TestDeleteSystemRoleRejected(t *testing.T) {
	repo := newMemRoleRepo()
	repo.nextID = 1
	repo.roles[1] = rbac.Role{ID: 1, Name: rbac.RoleSuperAdmin, System: true}
	svc, _ := newTestService(repo)

	err := svc.Delete(context.Background(), nil, 1)
	assert.ErrorIs(t, err, shared.ErrSystemRole)
	assert.Contains(t, repo.roles, int64(1))
}

func TestDeleteAssignedRoleRejected(t *testing.T) {
	repo := newMemRoleRepo()
	repo.nextID = 1
	repo.roles[1] = rbac.Role{ID: 1, Name: "Librarian"}
	repo.assignments[1] = []int64{7}
	svc, _ := newTestService(repo)

	err := svc.Delete(context.Background(), nil, 1)
	assert.ErrorIs(t, err, ErrRoleInUse)
}

func TestDeleteUnassignedCustomRole(t *testing.T) {
	repo := newMemRoleRepo()
	repo.nextID = 1
	repo.roles[1] = rbac.Role{ID: 1, Name: "Librarian"}
	svc, _ := newTestService(repo)

	require.NoError(t, svc.Delete(context.Background(), nil, 1))
	assert.NotContains(t, repo.roles, int64(1))
	require.NotEmpty(t, repo.auditLog)
	assert.Equal(t, audit.ActionRoleDelete, repo.auditLog[len(repo.auditLog)-1].Action)
}

func TestUpdateGrantsInvalidatesHolders(t *testing.T) {
	repo := newMemRoleRepo()
	repo.nextID = 1
	repo.roles[1] = rbac.Role{ID: 1, Name: "Librarian"}
	repo.assignments[1] = []int64{4, 9}
	svc, inv := newTestService(repo)

	_, err := svc.Update(context.Background(), nil, 1, UpdateInput{PermissionIDs: []int64{3}})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{4, 9}, inv.invalidated)
}
