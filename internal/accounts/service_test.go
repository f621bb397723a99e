package accounts

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholaris-sms/scholaris/internal/audit"
	"github.com/scholaris-sms/scholaris/internal/rbac"
	"github.com/scholaris-sms/scholaris/internal/shared"
)

// memRepo is an in-memory Repository. WithTx snapshots the state and restores
// it when fn fails, mirroring a database rollback.
type memRepo struct {
	accounts  map[int64]Account
	roles     map[int64]int64 // account id -> role id
	profiles  map[int64]TeacherProfile
	sessions  map[int64]int
	auditLog  []audit.Entry
	roleNames map[int64]string

	nextAccountID int64
	nextProfileID int64
	failures      map[string]error
}

func newMemRepo() *memRepo {
	return &memRepo{
		accounts:  map[int64]Account{},
		roles:     map[int64]int64{},
		profiles:  map[int64]TeacherProfile{},
		sessions:  map[int64]int{},
		roleNames: map[int64]string{1: rbac.RoleAdmin, 2: rbac.RoleTeacher, 3: rbac.RoleAccountant},
		failures:  map[string]error{},
	}
}

func (m *memRepo) fail(op string) error { return m.failures[op] }

func (m *memRepo) snapshot() *memRepo {
	c := &memRepo{
		accounts:      make(map[int64]Account, len(m.accounts)),
		roles:         make(map[int64]int64, len(m.roles)),
		profiles:      make(map[int64]TeacherProfile, len(m.profiles)),
		sessions:      make(map[int64]int, len(m.sessions)),
		auditLog:      append([]audit.Entry(nil), m.auditLog...),
		nextAccountID: m.nextAccountID,
		nextProfileID: m.nextProfileID,
	}
	for k, v := range m.accounts {
		c.accounts[k] = v
	}
	for k, v := range m.roles {
		c.roles[k] = v
	}
	for k, v := range m.profiles {
		c.profiles[k] = v
	}
	for k, v := range m.sessions {
		c.sessions[k] = v
	}
	return c
}

func (m *memRepo) restore(s *memRepo) {
	m.accounts = s.accounts
	m.roles = s.roles
	m.profiles = s.profiles
	m.sessions = s.sessions
	m.auditLog = s.auditLog
	m.nextAccountID = s.nextAccountID
	m.nextProfileID = s.nextProfileID
}

func (m *memRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	snap := m.snapshot()
	if err := fn(ctx, m); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *memRepo) EmailExists(_ context.Context, email string) (bool, error) {
	if err := m.fail("EmailExists"); err != nil {
		return false, err
	}
	for _, a := range m.accounts {
		if strings.EqualFold(a.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRepo) Create(_ context.Context, a *Account) error {
	if err := m.fail("Create"); err != nil {
		return err
	}
	m.nextAccountID++
	a.ID = m.nextAccountID
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	m.accounts[a.ID] = *a
	return nil
}

func (m *memRepo) Get(_ context.Context, id int64) (Account, error) {
	a, ok := m.accounts[id]
	if !ok || a.DeletedAt != nil {
		return Account{}, shared.ErrNotFound
	}
	a.Roles = nil
	a.TeacherProfile = nil
	return a, nil
}

func (m *memRepo) Update(_ context.Context, a *Account) error {
	if err := m.fail("Update"); err != nil {
		return err
	}
	stored, ok := m.accounts[a.ID]
	if !ok || stored.DeletedAt != nil {
		return shared.ErrNotFound
	}
	a.UpdatedAt = time.Now()
	m.accounts[a.ID] = *a
	return nil
}

func (m *memRepo) SoftDelete(_ context.Context, id int64) error {
	if err := m.fail("SoftDelete"); err != nil {
		return err
	}
	a, ok := m.accounts[id]
	if !ok || a.DeletedAt != nil {
		return shared.ErrNotFound
	}
	now := time.Now()
	a.DeletedAt = &now
	a.Status = StatusInactive
	a.IsActive = false
	m.accounts[id] = a
	return nil
}

func (m *memRepo) List(_ context.Context, f ListFilters, limit, offset int) ([]Account, int, error) {
	var out []Account
	for _, a := range m.accounts {
		if a.DeletedAt != nil {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		out = append(out, a)
	}
	total := len(out)
	if offset >= len(out) {
		return nil, total, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

func (m *memRepo) ReplaceRole(_ context.Context, accountID, roleID int64) error {
	if err := m.fail("ReplaceRole"); err != nil {
		return err
	}
	m.roles[accountID] = roleID
	return nil
}

func (m *memRepo) ClearRoles(_ context.Context, accountID int64) (int, error) {
	if _, ok := m.roles[accountID]; ok {
		delete(m.roles, accountID)
		return 1, nil
	}
	return 0, nil
}

func (m *memRepo) RoleNames(_ context.Context, accountID int64) ([]string, error) {
	if roleID, ok := m.roles[accountID]; ok {
		return []string{m.roleNames[roleID]}, nil
	}
	return nil, nil
}

func (m *memRepo) TeacherProfile(_ context.Context, accountID int64) (*TeacherProfile, error) {
	if p, ok := m.profiles[accountID]; ok {
		return &p, nil
	}
	return nil, nil
}

func (m *memRepo) CreateTeacherProfile(_ context.Context, p *TeacherProfile) error {
	if err := m.fail("CreateTeacherProfile"); err != nil {
		return err
	}
	m.nextProfileID++
	p.ID = m.nextProfileID
	p.CreatedAt = time.Now()
	m.profiles[p.AccountID] = *p
	return nil
}

func (m *memRepo) UpdateTeacherProfile(_ context.Context, accountID int64, qualification, specialization string) error {
	p, ok := m.profiles[accountID]
	if !ok {
		return shared.ErrNotFound
	}
	p.Qualification = qualification
	p.Specialization = specialization
	m.profiles[accountID] = p
	return nil
}

func (m *memRepo) DeleteTeacherProfile(_ context.Context, accountID int64) (bool, error) {
	if _, ok := m.profiles[accountID]; ok {
		delete(m.profiles, accountID)
		return true, nil
	}
	return false, nil
}

func (m *memRepo) DeleteSessions(_ context.Context, accountID int64) (int, error) {
	n := m.sessions[accountID]
	delete(m.sessions, accountID)
	return n, nil
}

func (m *memRepo) RecordAudit(_ context.Context, e audit.Entry) error {
	if err := m.fail("RecordAudit"); err != nil {
		return err
	}
	m.auditLog = append(m.auditLog, e)
	return nil
}

type memRoles struct{}

func (memRoles) GetRoleByName(_ context.Context, name string) (rbac.Role, error) {
	switch name {
	case rbac.RoleAdmin:
		return rbac.Role{ID: 1, Name: rbac.RoleAdmin, System: true}, nil
	case rbac.RoleTeacher:
		return rbac.Role{ID: 2, Name: rbac.RoleTeacher}, nil
	case rbac.RoleAccountant:
		return rbac.Role{ID: 3, Name: rbac.RoleAccountant}, nil
	}
	return rbac.Role{}, shared.ErrUnknownRole
}

type memInvalidator struct{ invalidated []int64 }

func (m *memInvalidator) InvalidatePermissions(_ context.Context, accountID int64) {
	m.invalidated = append(m.invalidated, accountID)
}

func newTestService(repo *memRepo) (*Service, *memInvalidator) {
	inv := &memInvalidator{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, memRoles{}, inv, logger), inv
}

func teacherInput(email string) CreateInput {
	return CreateInput{
		FirstName: "Ada",
		LastName:  "Mensah",
		Email:     email,
		Password:  "correct-horse",
		Role:      rbac.RoleTeacher,
	}
}

func TestCreateTeacherGetsProfile(t *testing.T) {
	repo := newMemRepo()
	svc, _ := newTestService(repo)

	account, err := svc.Create(context.Background(), nil, teacherInput("Ada.Mensah@School.example"))
	require.NoError(t, err)

	assert.Equal(t, "ada.mensah@school.example", account.Email)
	assert.Equal(t, StatusActive, account.Status)
	require.NotNil(t, account.TeacherProfile)
	assert.True(t, strings.HasPrefix(account.TeacherProfile.EmployeeID, "TCH-"))

	require.Len(t, repo.auditLog, 1)
	assert.Equal(t, audit.ActionAccountCreate, repo.auditLog[0].Action)
}

func TestCreateNonTeacherHasNoProfile(t *testing.T) {
	repo := newMemRepo()
	svc, _ := newTestService(repo)

	in := teacherInput("acct@school.example")
	in.Role = rbac.RoleAccountant
	account, err := svc.Create(context.Background(), nil, in)
	require.NoError(t, err)
	assert.Nil(t, account.TeacherProfile)
	assert.Empty(t, repo.profiles)
}

func TestCreateRejectsDuplicateEmailEvenWhenSoftDeleted(t *testing.T) {
	repo := newMemRepo()
	svc, _ := newTestService(repo)
	ctx := context.Background()

	account, err := svc.Create(ctx, nil, teacherInput("reuse@school.example"))
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, nil, account.ID))

	_, err = svc.Create(ctx, nil, teacherInput("reuse@school.example"))
	assert.ErrorIs(t, err, shared.ErrDuplicateEmail)
}

func TestCreateRejectsUnknownRole(t *testing.T) {
	repo := newMemRepo()
	svc, _ := newTestService(repo)

	in := teacherInput("x@school.example")
	in.Role = "Janitor"
	_, err := svc.Create(context.Background(), nil, in)
	assert.ErrorIs(t, err, shared.ErrUnknownRole)
	assert.Empty(t, repo.accounts)
}

func TestCreateRollsBackWhenProfileInsertFails(t *testing.T) {
	repo := newMemRepo()
	repo.failures["CreateTeacherProfile"] = assert.AnError
	svc, _ := newTestService(repo)

	_, err := svc.Create(context.Background(), nil, teacherInput("atomic@school.example"))
	require.ErrorIs(t, err, assert.AnError)

	assert.Empty(t, repo.accounts, "account insert must roll back with the profile")
	assert.Empty(t, repo.roles)
	assert.Empty(t, repo.auditLog)
}

func TestCreateRollsBackWhenAuditFails(t *testing.T) {
	repo := newMemRepo()
	repo.failures["RecordAudit"] = assert.AnError
	svc, _ := newTestService(repo)

	_, err := svc.Create(context.Background(), nil, teacherInput("audited@school.example"))
	require.ErrorIs(t, err, assert.AnError)
	assert.Empty(t, repo.accounts)
	assert.Empty(t, repo.profiles)
}

func TestUpdateRoleToTeacherCreatesProfile(t *testing.T) {
	repo := newMemRepo()
	svc, inv := newTestService(repo)
	ctx := context.Background()

	in := teacherInput("promote@school.example")
	in.Role = rbac.RoleAccountant
	account, err := svc.Create(ctx, nil, in)
	require.NoError(t, err)
	require.Nil(t, account.TeacherProfile)

	role := rbac.RoleTeacher
	updated, err := svc.Update(ctx, nil, account.ID, UpdateInput{Role: &role})
	require.NoError(t, err)

	require.NotNil(t, updated.TeacherProfile)
	assert.Equal(t, []string{rbac.RoleTeacher}, updated.Roles)
	assert.Contains(t, inv.invalidated, account.ID)
}

func TestUpdateRoleOffTeacherDeletesProfile(t *testing.T) {
	repo := newMemRepo()
	svc, _ := newTestService(repo)
	ctx := context.Background()

	account, err := svc.Create(ctx, nil, teacherInput("demote@school.example"))
	require.NoError(t, err)
	require.NotNil(t, account.TeacherProfile)

	role := rbac.RoleAccountant
	updated, err := svc.Update(ctx, nil, account.ID, UpdateInput{Role: &role})
	require.NoError(t, err)

	assert.Nil(t, updated.TeacherProfile)
	assert.Empty(t, repo.profiles)
}

func TestUpdateEmailCollisionRejected(t *testing.T) {
	repo := newMemRepo()
	svc, _ := newTestService(repo)
	ctx := context.Background()

	_, err := svc.Create(ctx, nil, teacherInput("first@school.example"))
	require.NoError(t, err)
	second, err := svc.Create(ctx, nil, teacherInput("second@school.example"))
	require.NoError(t, err)

	email := "first@school.example"
	_, err = svc.Update(ctx, nil, second.ID, UpdateInput{Email: &email})
	assert.ErrorIs(t, err, shared.ErrDuplicateEmail)
}

func TestDeleteSoftDeletesAndRevokesEverything(t *testing.T) {
	repo := newMemRepo()
	svc, inv := newTestService(repo)
	ctx := context.Background()

	account, err := svc.Create(ctx, nil, teacherInput("leaver@school.example"))
	require.NoError(t, err)
	repo.sessions[account.ID] = 2

	require.NoError(t, svc.Delete(ctx, nil, account.ID))

	_, err = svc.Get(ctx, account.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	stored := repo.accounts[account.ID]
	require.NotNil(t, stored.DeletedAt)
	assert.Equal(t, StatusInactive, stored.Status)
	assert.Empty(t, repo.roles)
	assert.Empty(t, repo.profiles)
	assert.Empty(t, repo.sessions)
	assert.Contains(t, inv.invalidated, account.ID)

	last := repo.auditLog[len(repo.auditLog)-1]
	assert.Equal(t, audit.ActionAccountDelete, last.Action)
	assert.Equal(t, true, last.Meta["hadTeacherProfile"])
}

func TestDeleteMissingAccountReturnsNotFound(t *testing.T) {
	repo := newMemRepo()
	svc, _ := newTestService(repo)
	err := svc.Delete(context.Background(), nil, 99)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestVerifyAndFixCreatesMissingProfile(t *testing.T) {
	repo := newMemRepo()
	svc, _ := newTestService(repo)
	ctx := context.Background()

	account, err := svc.Create(ctx, nil, teacherInput("drift@school.example"))
	require.NoError(t, err)
	delete(repo.profiles, account.ID) // simulate drift

	report, err := svc.VerifyAndFix(ctx, nil, account.ID)
	require.NoError(t, err)

	assert.False(t, report.Consistent())
	assert.True(t, report.ProfileCreated)
	assert.Contains(t, repo.profiles, account.ID)
}

func TestVerifyAndFixRemovesOrphanProfile(t *testing.T) {
	repo := newMemRepo()
	svc, _ := newTestService(repo)
	ctx := context.Background()

	in := teacherInput("orphan@school.example")
	in.Role = rbac.RoleAccountant
	account, err := svc.Create(ctx, nil, in)
	require.NoError(t, err)
	repo.profiles[account.ID] = TeacherProfile{ID: 9, AccountID: account.ID, EmployeeID: "TCH-0-XYZ"}

	report, err := svc.VerifyAndFix(ctx, nil, account.ID)
	require.NoError(t, err)

	assert.True(t, report.ProfileDeleted)
	assert.NotContains(t, repo.profiles, account.ID)
}

func TestVerifyAndFixConsistentAccountIsNoop(t *testing.T) {
	repo := newMemRepo()
	svc, _ := newTestService(repo)
	ctx := context.Background()

	account, err := svc.Create(ctx, nil, teacherInput("steady@school.example"))
	require.NoError(t, err)
	before := len(repo.auditLog)

	report, err := svc.VerifyAndFix(ctx, nil, account.ID)
	require.NoError(t, err)

	assert.True(t, report.Consistent())
	assert.Len(t, repo.auditLog, before)
}
