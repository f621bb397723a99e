package rbac

import (
	"context"
	"strings"
	"testing"
)

type memSeedStore struct {
	permissions map[string]int64 // action|subject -> id
	permDesc    map[int64]string
	roles       map[string]int64
	roleSystem  map[string]bool
	links       map[[2]int64]struct{}
	accounts    map[string]int64
	nextID      int64
}

func newMemSeedStore() *memSeedStore {
	return &memSeedStore{
		permissions: make(map[string]int64),
		permDesc:    make(map[int64]string),
		roles:       make(map[string]int64),
		roleSystem:  make(map[string]bool),
		links:       make(map[[2]int64]struct{}),
		accounts:    make(map[string]int64),
		nextID:      1,
	}
}

func (m *memSeedStore) UpsertPermission(_ context.Context, action Action, subject Subject, name, description string) (int64, error) {
	key := string(action) + "|" + string(subject)
	if id, ok := m.permissions[key]; ok {
		m.permDesc[id] = description
		return id, nil
	}
	id := m.nextID
	m.nextID++
	m.permissions[key] = id
	m.permDesc[id] = description
	return id, nil
}

func (m *memSeedStore) UpsertRole(_ context.Context, name, description string, system bool) (int64, error) {
	if id, ok := m.roles[name]; ok {
		return id, nil
	}
	id := m.nextID
	m.nextID++
	m.roles[name] = id
	m.roleSystem[name] = system
	return id, nil
}

func (m *memSeedStore) EnsureRolePermission(_ context.Context, roleID, permissionID int64) error {
	m.links[[2]int64{roleID, permissionID}] = struct{}{}
	return nil
}

func (m *memSeedStore) AccountEmailExists(_ context.Context, email string) (bool, error) {
	_, ok := m.accounts[strings.ToLower(email)]
	return ok, nil
}

func (m *memSeedStore) CreateAccountWithRole(_ context.Context, _, _, email, passwordHash string, _ int64) error {
	if !strings.HasPrefix(passwordHash, "$2") {
		// bcrypt hashes start with the $2 version marker; reject plaintext.
		return context.Canceled
	}
	id := m.nextID
	m.nextID++
	m.accounts[strings.ToLower(email)] = id
	return nil
}

func TestSeederIsIdempotent(t *testing.T) {
	store := newMemSeedStore()
	seeder := NewSeeder(store, nil)

	if err := seeder.Run(context.Background(), nil); err != nil {
		t.Fatalf("first run: %v", err)
	}
	perms, roles, links := len(store.permissions), len(store.roles), len(store.links)

	if err := seeder.Run(context.Background(), nil); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(store.permissions) != perms {
		t.Fatalf("permission count changed: %d -> %d", perms, len(store.permissions))
	}
	if len(store.roles) != roles {
		t.Fatalf("role count changed: %d -> %d", roles, len(store.roles))
	}
	if len(store.links) != links {
		t.Fatalf("role-permission count changed: %d -> %d", links, len(store.links))
	}

	wantPerms := len(Actions()) * len(Subjects())
	if perms != wantPerms {
		t.Fatalf("expected %d permissions, got %d", wantPerms, perms)
	}
}

func TestSeederFullAccessRolesGetWholeCatalog(t *testing.T) {
	store := newMemSeedStore()
	if err := NewSeeder(store, nil).Run(context.Background(), nil); err != nil {
		t.Fatalf("run: %v", err)
	}

	catalog := len(Actions()) * len(Subjects())
	for _, name := range []string{RoleSuperAdmin, RoleAdmin} {
		roleID := store.roles[name]
		count := 0
		for link := range store.links {
			if link[0] == roleID {
				count++
			}
		}
		if count != catalog {
			t.Fatalf("%s: expected %d permissions, got %d", name, catalog, count)
		}
	}
}

func TestSeederAccountantScope(t *testing.T) {
	var accountant RoleDefinition
	for _, def := range RoleDefinitions() {
		if def.Name == RoleAccountant {
			accountant = def
		}
	}
	if accountant.Name == "" {
		t.Fatal("accountant role not defined")
	}
	if !accountant.Grants(ActionDelete, SubjectFinance) {
		t.Fatal("accountant should hold all finance actions")
	}
	if !accountant.Grants(ActionRead, SubjectStudent) {
		t.Fatal("accountant should read students")
	}
	if accountant.Grants(ActionUpdate, SubjectStudent) {
		t.Fatal("accountant must not mutate students")
	}
	if accountant.Grants(ActionRead, SubjectAuditLog) {
		t.Fatal("accountant must not read audit logs")
	}
}

func TestSeederBootstrapAdmin(t *testing.T) {
	store := newMemSeedStore()
	seeder := NewSeeder(store, nil)
	admin := &BootstrapAdmin{Email: "Head@School.example", Password: "change-me-now"}

	if err := seeder.Run(context.Background(), admin); err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, ok := store.accounts["head@school.example"]; !ok {
		t.Fatal("bootstrap admin not created")
	}

	// Existing account: re-run must not duplicate or error.
	if err := seeder.Run(context.Background(), admin); err != nil {
		t.Fatalf("re-run: %v", err)
	}
	if len(store.accounts) != 1 {
		t.Fatalf("expected 1 account, got %d", len(store.accounts))
	}
}

func TestSeederBootstrapAdminRequiresPassword(t *testing.T) {
	store := newMemSeedStore()
	seeder := NewSeeder(store, nil)
	if err := seeder.Run(context.Background(), &BootstrapAdmin{Email: "head@school.example"}); err == nil {
		t.Fatal("expected error for missing bootstrap password")
	}
}
