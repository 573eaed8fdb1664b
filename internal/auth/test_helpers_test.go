package auth

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Akash1430/POCPortal/internal/infrastructure/config"
	"github.com/Akash1430/POCPortal/internal/infrastructure/database"
	"github.com/Akash1430/POCPortal/migrations"
)

const (
	testSecret   = "test-secret-key-for-jwt-signing-0123456789"
	testPassword = "Correct1!"
)

// testDB creates a temporary SQLite database with the embedded migrations
// applied, including the seeded roles and catalog.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(t.Context(), config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "auth-test.db"),
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

// testSigner returns a signer with the default 15 minute lifetime.
func testSigner(t *testing.T) *Signer {
	t.Helper()
	s, err := NewSigner(testSecret, "orgadmin", "orgadmin-clients", 0)
	if err != nil {
		t.Fatalf("NewSigner() error = %v", err)
	}
	return s
}

// seedAccount inserts an account with testPassword and the given role code.
func seedAccount(t *testing.T, db *sql.DB, username string, role RoleCode) *Account {
	t.Helper()

	hash, err := HashPassword(testPassword)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}

	r, err := NewRoleRepository(db).GetByCode(t.Context(), role)
	if err != nil {
		t.Fatalf("resolving role %s: %v", role, err)
	}

	repo := NewAccountRepository(db)
	account := &Account{
		Username:     username,
		Email:        username + "@example.com",
		FirstName:    "Test",
		LastName:     username,
		PasswordHash: hash,
		RoleID:       r.ID,
		CreatedBy:    "test",
	}
	if err := repo.Create(t.Context(), account); err != nil {
		t.Fatalf("creating test account %s: %v", username, err)
	}

	stored, err := repo.GetByID(t.Context(), account.ID)
	if err != nil {
		t.Fatalf("reloading test account %s: %v", username, err)
	}
	return stored
}

// recorder collects security events.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) OnSecurityEvent(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) has(typ EventType) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.events {
		if ev.Type == typ {
			return true
		}
	}
	return false
}

// fixture wires the real repositories over a fresh database.
type fixture struct {
	db       *sql.DB
	accounts *SQLiteAccountRepository
	roles    *SQLiteRoleRepository
	tokens   *SQLiteTokenRepository
	service  *TokenService
	manager  *Manager
	events   *recorder
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	db := testDB(t)
	f := &fixture{
		db:       db,
		accounts: NewAccountRepository(db),
		roles:    NewRoleRepository(db),
		tokens:   NewTokenRepository(db),
		events:   &recorder{},
	}
	opts = append([]Option{WithObserver(f.events)}, opts...)
	f.service = NewTokenService(f.tokens, f.accounts, testSigner(t), opts...)
	f.manager = NewManager(f.accounts, f.roles, f.service, opts...)
	return f
}

// activeCount returns the number of active refresh tokens for an account.
func (f *fixture) activeCount(t *testing.T, accountID string) int {
	t.Helper()
	tokens, err := f.tokens.ListActiveByAccount(t.Context(), accountID, time.Now())
	if err != nil {
		t.Fatalf("ListActiveByAccount() error = %v", err)
	}
	return len(tokens)
}
