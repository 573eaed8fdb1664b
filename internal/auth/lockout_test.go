package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLockout(t *testing.T, cfg LockoutConfig) (*RedisLockout, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() }) //nolint:errcheck // test cleanup
	return NewRedisLockout(rdb, cfg), mr
}

func TestRedisLockout_Threshold(t *testing.T) {
	l, mr := newTestLockout(t, LockoutConfig{Enabled: true, Threshold: 3, Window: 15 * time.Minute})
	ctx := t.Context()

	for i := 1; i <= 3; i++ {
		locked, err := l.RecordFailure(ctx, "Jdoe")
		if err != nil {
			t.Fatalf("RecordFailure() error = %v", err)
		}
		if want := i == 3; locked != want {
			t.Errorf("failure %d: locked = %v, want %v", i, locked, want)
		}
	}

	locked, err := l.Locked(ctx, "jdoe")
	if err != nil {
		t.Fatalf("Locked() error = %v", err)
	}
	if !locked {
		t.Error("username should be locked after reaching the threshold")
	}

	if ttl := mr.TTL("orgadmin:lockout:jdoe"); ttl <= 0 || ttl > 15*time.Minute {
		t.Errorf("TTL = %v, want (0, 15m]", ttl)
	}

	mr.FastForward(16 * time.Minute)
	locked, err = l.Locked(ctx, "jdoe")
	if err != nil {
		t.Fatalf("Locked() error = %v", err)
	}
	if locked {
		t.Error("lock should lapse after the window")
	}
}

func TestRedisLockout_Reset(t *testing.T) {
	l, mr := newTestLockout(t, LockoutConfig{Enabled: true, Threshold: 2, Window: time.Minute})
	ctx := t.Context()

	if _, err := l.RecordFailure(ctx, "jdoe"); err != nil {
		t.Fatalf("RecordFailure() error = %v", err)
	}
	if err := l.Reset(ctx, "jdoe"); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if mr.Exists("orgadmin:lockout:jdoe") {
		t.Error("Reset() should delete the counter")
	}
}

func TestRedisLockout_Disabled(t *testing.T) {
	l, mr := newTestLockout(t, LockoutConfig{Enabled: false, Threshold: 1})
	ctx := t.Context()

	locked, err := l.RecordFailure(ctx, "jdoe")
	if err != nil || locked {
		t.Errorf("RecordFailure() = %v, %v; want false, nil", locked, err)
	}
	if len(mr.Keys()) != 0 {
		t.Errorf("disabled lockout wrote keys: %v", mr.Keys())
	}
}

func TestRedisLockout_Unavailable(t *testing.T) {
	l, mr := newTestLockout(t, LockoutConfig{Enabled: true, Threshold: 1})
	mr.Close()

	if _, err := l.Locked(t.Context(), "jdoe"); !errors.Is(err, ErrLockoutUnavailable) {
		t.Errorf("Locked() error = %v, want ErrLockoutUnavailable", err)
	}
}

func TestManager_Login_Lockout(t *testing.T) {
	l, _ := newTestLockout(t, LockoutConfig{Enabled: true, Threshold: 2, Window: time.Minute})
	f := newFixture(t, WithLockout(l))
	seedAccount(t, f.db, "target", "EMPLOYEE")
	ctx := t.Context()

	for range 2 {
		if _, err := f.manager.Login(ctx, "target", "wrong"); !errors.Is(err, ErrInvalidCredential) {
			t.Fatalf("Login(wrong) error = %v, want ErrInvalidCredential", err)
		}
	}
	if !f.events.has(EventLoginLocked) {
		t.Error("login_locked event not emitted")
	}

	if _, err := f.manager.Login(ctx, "target", testPassword); !errors.Is(err, ErrLoginLocked) {
		t.Errorf("Login(locked) error = %v, want ErrLoginLocked", err)
	}
}

// A lockout backend outage must not block logins.
func TestManager_Login_LockoutFailsOpen(t *testing.T) {
	l, mr := newTestLockout(t, LockoutConfig{Enabled: true, Threshold: 1, Window: time.Minute})
	mr.Close()
	f := newFixture(t, WithLockout(l))
	seedAccount(t, f.db, "target", "EMPLOYEE")

	if _, err := f.manager.Login(t.Context(), "target", testPassword); err != nil {
		t.Errorf("Login() with lockout backend down error = %v", err)
	}
}
