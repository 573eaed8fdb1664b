package permission

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Akash1430/POCPortal/internal/auth"
	"github.com/Akash1430/POCPortal/internal/infrastructure/config"
	"github.com/Akash1430/POCPortal/internal/infrastructure/database"
	"github.com/Akash1430/POCPortal/migrations"
)

// Seeded catalog ids.
const (
	roleSysAdmin  int64 = 1
	roleUserAdmin int64 = 2
	roleManager   int64 = 3
	roleEmployee  int64 = 4
	roleHR        int64 = 5

	moduleEmployeeManagement int64 = 3
	moduleManagerManagement  int64 = 4
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(t.Context(), config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "permission-test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup

	if err := db.Migrate(t.Context(), migrations.FS()); err != nil {
		t.Fatalf("applying migrations: %v", err)
	}
	return db.DB
}

type eventLog struct {
	mu     sync.Mutex
	events []auth.Event
}

func (l *eventLog) OnSecurityEvent(_ context.Context, ev auth.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) last() auth.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.events) == 0 {
		return auth.Event{}
	}
	return l.events[len(l.events)-1]
}

type fixture struct {
	db        *sql.DB
	catalog   *SQLiteCatalogRepository
	roles     *auth.SQLiteRoleRepository
	evaluator *Evaluator
	events    *eventLog
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testDB(t)
	f := &fixture{
		db:      db,
		catalog: NewCatalogRepository(db),
		roles:   auth.NewRoleRepository(db),
		events:  &eventLog{},
	}
	f.evaluator = NewEvaluator(f.catalog, f.roles, WithObserver(f.events))
	return f
}

// grants returns the capability ids currently granted to a role.
func (f *fixture) grants(t *testing.T, roleID int64) []int64 {
	t.Helper()
	ids, err := f.catalog.GrantedCapabilityIDs(t.Context(), roleID)
	if err != nil {
		t.Fatalf("GrantedCapabilityIDs() error = %v", err)
	}
	return ids
}

// addCapability creates a visible capability, optionally under parent.
func (f *fixture) addCapability(t *testing.T, moduleID int64, ref string, parent *int64) *Capability {
	t.Helper()
	c, err := f.evaluator.CreateCapability(t.Context(), "test", Capability{
		ModuleID:  moduleID,
		Name:      ref,
		RefCode:   ref,
		ParentID:  parent,
		IsVisible: true,
	})
	if err != nil {
		t.Fatalf("CreateCapability(%s) error = %v", ref, err)
	}
	return c
}

func ptr(id int64) *int64 { return &id }
