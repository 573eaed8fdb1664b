package auth

import (
	"log/slog"
	"testing"
)

var testBootstrap = BootstrapAccount{Username: "sysadmin", Email: "sysadmin@example.com"}

func TestBootstrap_CreatesOnEmptyDB(t *testing.T) {
	db := testDB(t)
	accounts := NewAccountRepository(db)
	ctx := t.Context()

	password, err := Bootstrap(ctx, accounts, NewRoleRepository(db), testBootstrap, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}
	if len(password) != 32 {
		t.Errorf("generated password length = %d, want 32", len(password))
	}

	admin, err := accounts.GetByUsername(ctx, "sysadmin")
	if err != nil {
		t.Fatalf("GetByUsername() error = %v", err)
	}
	if admin.RoleCode != RoleSysAdmin {
		t.Errorf("RoleCode = %q, want SYSADMIN", admin.RoleCode)
	}
	if admin.CreatedBy != "system" {
		t.Errorf("CreatedBy = %q, want system", admin.CreatedBy)
	}

	ok, err := VerifyPassword(password, admin.PasswordHash)
	if err != nil {
		t.Fatalf("VerifyPassword() error = %v", err)
	}
	if !ok {
		t.Error("generated password should verify against the stored hash")
	}
}

func TestBootstrap_SkipsWhenAccountsExist(t *testing.T) {
	db := testDB(t)
	seedAccount(t, db, "existing", "EMPLOYEE")
	accounts := NewAccountRepository(db)

	password, err := Bootstrap(t.Context(), accounts, NewRoleRepository(db), testBootstrap, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}
	if password != "" {
		t.Error("Bootstrap() should return an empty password when skipped")
	}

	count, err := accounts.Count(t.Context())
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 1 {
		t.Errorf("Count() = %d, want 1", count)
	}
}

func TestBootstrap_UniquePasswords(t *testing.T) {
	passwords := make([]string, 2)
	for i := range passwords {
		db := testDB(t)
		pw, err := Bootstrap(t.Context(), NewAccountRepository(db), NewRoleRepository(db), testBootstrap, slog.New(slog.DiscardHandler))
		if err != nil {
			t.Fatalf("Bootstrap() error = %v", err)
		}
		passwords[i] = pw
	}
	if passwords[0] == passwords[1] {
		t.Error("two bootstraps should generate different passwords")
	}
}
