package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// Resilience tests cover concurrent and degraded conditions. They share the
// TestResilience_ prefix for filtering:
//
//	go test -run TestResilience -race ./internal/auth/...

// Two clients presenting the same refresh token at once: exactly one wins.
func TestResilience_ConcurrentRefresh(t *testing.T) {
	f := newFixture(t)
	account := seedAccount(t, f.db, "concurrent", "EMPLOYEE")
	ctx := t.Context()

	pair, err := f.service.IssuePair(ctx, account)
	if err != nil {
		t.Fatalf("IssuePair() error = %v", err)
	}

	const attempts = 8
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.Refresh(ctx, pair.RefreshToken)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var successes int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrInvalidCredential):
		default:
			t.Errorf("unexpected Refresh() error = %v", err)
		}
	}
	if successes != 1 {
		t.Errorf("successful refreshes = %d, want exactly 1", successes)
	}
	if got := f.activeCount(t, account.ID); got != 1 {
		t.Errorf("active tokens = %d, want 1", got)
	}
}

func TestResilience_ConcurrentLogins(t *testing.T) {
	f := newFixture(t)
	account := seedAccount(t, f.db, "busy", "EMPLOYEE")
	ctx := t.Context()

	const logins = 5
	var wg sync.WaitGroup
	errs := make(chan error, logins)
	for range logins {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.manager.Login(ctx, "busy", testPassword)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Login() error = %v", err)
		}
	}
	if got := f.activeCount(t, account.ID); got != logins {
		t.Errorf("active tokens = %d, want %d", got, logins)
	}
}

// hookLockout never locks and runs onReset between the login checks and
// token issuance.
type hookLockout struct {
	onReset func(ctx context.Context)
}

func (h *hookLockout) Locked(context.Context, string) (bool, error)        { return false, nil }
func (h *hookLockout) RecordFailure(context.Context, string) (bool, error) { return false, nil }
func (h *hookLockout) Reset(ctx context.Context, _ string) error {
	if h.onReset != nil {
		h.onReset(ctx)
	}
	return nil
}

// A freeze that commits after the login checks must not leave a session
// that survives it.
func TestResilience_FreezeDuringLogin(t *testing.T) {
	hook := &hookLockout{}
	f := newFixture(t, WithLockout(hook))
	admin := seedAccount(t, f.db, "admin", RoleUserAdmin)
	account := seedAccount(t, f.db, "racer", "EMPLOYEE")
	ctx := t.Context()

	hook.onReset = func(ctx context.Context) {
		hook.onReset = nil
		if _, err := f.manager.Freeze(ctx, admin.ID, account.ID); err != nil {
			t.Errorf("Freeze() error = %v", err)
		}
	}

	pair, err := f.manager.Login(ctx, "racer", testPassword)
	if !errors.Is(err, ErrAccountFrozen) {
		t.Fatalf("Login() error = %v, want ErrAccountFrozen", err)
	}
	if pair != nil {
		t.Error("Login() should not return a pair")
	}
	if got := f.activeCount(t, account.ID); got != 0 {
		t.Errorf("active tokens after freeze = %d, want 0", got)
	}

	if _, err := f.manager.Unfreeze(ctx, admin.ID, account.ID); err != nil {
		t.Fatalf("Unfreeze() error = %v", err)
	}
	if got := f.activeCount(t, account.ID); got != 0 {
		t.Errorf("active tokens after unfreeze = %d, want 0", got)
	}
}

func TestResilience_PasswordResetDuringLogin(t *testing.T) {
	hook := &hookLockout{}
	f := newFixture(t, WithLockout(hook))
	admin := seedAccount(t, f.db, "admin", RoleUserAdmin)
	account := seedAccount(t, f.db, "racer", "EMPLOYEE")
	ctx := t.Context()

	hook.onReset = func(ctx context.Context) {
		hook.onReset = nil
		if err := f.manager.AdminChangePassword(ctx, admin.ID, account.ID, "Replaced1!"); err != nil {
			t.Errorf("AdminChangePassword() error = %v", err)
		}
	}

	if _, err := f.manager.Login(ctx, "racer", testPassword); !errors.Is(err, ErrAccountIneligible) {
		t.Fatalf("Login() with replaced password error = %v, want ErrAccountIneligible", err)
	}
	if got := f.activeCount(t, account.ID); got != 0 {
		t.Errorf("active tokens = %d, want 0", got)
	}
	if _, err := f.manager.Login(ctx, "racer", "Replaced1!"); err != nil {
		t.Errorf("Login() with new password error = %v", err)
	}
}

// Token inserts, including rotation successors, re-check the account at write time.
func TestTokenRepository_Create_RefusesFrozenAccount(t *testing.T) {
	db := testDB(t)
	account := seedAccount(t, db, "cold", "EMPLOYEE")
	repo := NewTokenRepository(db)
	ctx := t.Context()

	live := newTestToken(account.ID, "live", time.Now().Add(time.Hour))
	if err := repo.Create(ctx, live); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := db.ExecContext(ctx, "UPDATE accounts SET is_frozen = 1 WHERE id = ?", account.ID); err != nil {
		t.Fatalf("freezing account: %v", err)
	}

	if err := repo.Create(ctx, newTestToken(account.ID, "late", time.Now().Add(time.Hour))); !errors.Is(err, ErrAccountUnavailable) {
		t.Errorf("Create(frozen) error = %v, want ErrAccountUnavailable", err)
	}
	successor := newTestToken(account.ID, "successor", time.Now().Add(time.Hour))
	if err := repo.Rotate(ctx, live.ID, successor, time.Now()); !errors.Is(err, ErrAccountUnavailable) {
		t.Errorf("Rotate(frozen) error = %v, want ErrAccountUnavailable", err)
	}
	if _, err := repo.GetByTokenHash(ctx, HashToken("successor")); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("refused successor should not be stored, error = %v", err)
	}
	if err := repo.Create(ctx, newTestToken("usr-missing", "orphan", time.Now().Add(time.Hour))); !errors.Is(err, ErrAccountUnavailable) {
		t.Errorf("Create(missing account) error = %v, want ErrAccountUnavailable", err)
	}

	stale := newTestToken(account.ID, "stale", time.Now().Add(time.Hour))
	stale.credential = "not-the-current-hash"
	if _, err := db.ExecContext(ctx, "UPDATE accounts SET is_frozen = 0 WHERE id = ?", account.ID); err != nil {
		t.Fatalf("unfreezing account: %v", err)
	}
	if err := repo.Create(ctx, stale); !errors.Is(err, ErrAccountUnavailable) {
		t.Errorf("Create(stale credential) error = %v, want ErrAccountUnavailable", err)
	}
}

func TestResilience_DeleteCascadesTokens(t *testing.T) {
	f := newFixture(t)
	admin := seedAccount(t, f.db, "admin", RoleUserAdmin)
	account := seedAccount(t, f.db, "leaving", "EMPLOYEE")
	ctx := t.Context()

	pair, err := f.manager.Login(ctx, "leaving", testPassword)
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if err := f.manager.Delete(ctx, admin.ID, account.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, err := f.tokens.GetByTokenHash(ctx, HashToken(pair.RefreshToken)); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("token of deleted account error = %v, want ErrTokenNotFound", err)
	}
	if _, err := f.service.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrInvalidCredential) {
		t.Errorf("Refresh() after delete error = %v, want ErrInvalidCredential", err)
	}
}

func TestResilience_CancelledContext(t *testing.T) {
	f := newFixture(t)
	seedAccount(t, f.db, "cancelled", "EMPLOYEE")

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	if _, err := f.manager.Login(ctx, "cancelled", testPassword); err == nil {
		t.Error("Login() with cancelled context should fail")
	}
	if _, err := f.accounts.Count(ctx); err == nil {
		t.Error("Count() with cancelled context should fail")
	}
}
