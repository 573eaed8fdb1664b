package database

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/Akash1430/POCPortal/migrations"
)

func testMigrations() fstest.MapFS {
	return fstest.MapFS{
		"20260101_000000_create_widgets.up.sql":   {Data: []byte("CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT NOT NULL) STRICT;")},
		"20260101_000000_create_widgets.down.sql": {Data: []byte("DROP TABLE widgets;")},
		"20260102_000000_add_gadgets.up.sql":      {Data: []byte("CREATE TABLE gadgets (id INTEGER PRIMARY KEY) STRICT;")},
		"20260102_000000_add_gadgets.down.sql":    {Data: []byte("DROP TABLE gadgets;")},
		"README.md":                               {Data: []byte("ignored")},
	}
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var count int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name,
	).Scan(&count)
	if err != nil {
		t.Fatalf("checking table %s: %v", name, err)
	}
	return count == 1
}

func TestMigrate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	src := testMigrations()

	if err := db.Migrate(ctx, src); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	if !tableExists(t, db, "widgets") || !tableExists(t, db, "gadgets") {
		t.Fatal("expected widgets and gadgets tables")
	}

	applied, pending, err := db.GetMigrationStatus(ctx, src)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 2 {
		t.Errorf("applied = %d, want 2", len(applied))
	}
	if len(pending) != 0 {
		t.Errorf("pending = %d, want 0", len(pending))
	}

	// Idempotent.
	if err := db.Migrate(ctx, src); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

func TestMigrateDown(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	src := testMigrations()

	if err := db.Migrate(ctx, src); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx, src); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}

	if tableExists(t, db, "gadgets") {
		t.Error("gadgets should be dropped by MigrateDown")
	}
	if !tableExists(t, db, "widgets") {
		t.Error("widgets should survive a single MigrateDown")
	}

	_, pending, err := db.GetMigrationStatus(ctx, src)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(pending) != 1 || pending[0].Name != "add_gadgets" {
		t.Errorf("pending = %+v, want [add_gadgets]", pending)
	}
}

func TestMigrateDown_NothingApplied(t *testing.T) {
	db := openTestDB(t)
	if err := db.MigrateDown(context.Background(), testMigrations()); err != nil {
		t.Errorf("MigrateDown() on empty database error = %v", err)
	}
}

func TestMigrate_FailureRollsBackThatMigration(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	src := testMigrations()
	src["20260103_000000_broken.up.sql"] = &fstest.MapFile{Data: []byte("CREATE TABLE broken (; ")}

	if err := db.Migrate(ctx, src); err == nil {
		t.Fatal("Migrate() expected error for broken migration")
	}

	applied, pending, err := db.GetMigrationStatus(ctx, src)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 2 {
		t.Errorf("applied = %d, want 2 (earlier migrations stay committed)", len(applied))
	}
	if len(pending) != 1 {
		t.Errorf("pending = %d, want 1", len(pending))
	}
}

func TestMigrate_EmbeddedSchema(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx, migrations.FS()); err != nil {
		t.Fatalf("Migrate(embedded) error = %v", err)
	}

	for _, table := range []string{"roles", "accounts", "modules", "capabilities", "role_capabilities", "refresh_tokens", "audit_logs"} {
		if !tableExists(t, db, table) {
			t.Errorf("table %s missing after embedded migrations", table)
		}
	}

	var grants int
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM role_capabilities rc JOIN roles r ON r.id = rc.role_id WHERE r.ref_code = 'SYSADMIN'`,
	).Scan(&grants); err != nil {
		t.Fatalf("counting grants: %v", err)
	}
	if grants != 9 {
		t.Errorf("SYSADMIN grants = %d, want 9", grants)
	}

	// Full round trip down and back up.
	if err := db.MigrateDown(ctx, migrations.FS()); err != nil {
		t.Fatalf("MigrateDown(seed) error = %v", err)
	}
	if err := db.MigrateDown(ctx, migrations.FS()); err != nil {
		t.Fatalf("MigrateDown(schema) error = %v", err)
	}
	if tableExists(t, db, "accounts") {
		t.Error("accounts should be dropped")
	}
	if err := db.Migrate(ctx, migrations.FS()); err != nil {
		t.Fatalf("re-Migrate error = %v", err)
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		name        string
		wantVersion string
		wantUp      bool
		wantOK      bool
	}{
		{"20250915_191714_initial_schema.up.sql", "20250915_191714", true, true},
		{"20250915_191714_initial_schema.down.sql", "20250915_191714", false, true},
		{"20250915_191714_initial_schema.sql", "", false, false},
		{"notes.txt", "", false, false},
		{"single.up.sql", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, isUp, ok := parseMigrationFilename(tt.name)
			if version != tt.wantVersion || isUp != tt.wantUp || ok != tt.wantOK {
				t.Errorf("parseMigrationFilename(%q) = (%q, %v, %v), want (%q, %v, %v)",
					tt.name, version, isUp, ok, tt.wantVersion, tt.wantUp, tt.wantOK)
			}
		})
	}
}

func TestExtractMigrationName(t *testing.T) {
	if got := extractMigrationName("20250916_090000_seed_catalog.up.sql"); got != "seed_catalog" {
		t.Errorf("extractMigrationName() = %q, want seed_catalog", got)
	}
}
