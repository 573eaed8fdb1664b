package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/Akash1430/POCPortal/internal/audit"
	"github.com/Akash1430/POCPortal/internal/auth"
	"github.com/Akash1430/POCPortal/internal/infrastructure/config"
	"github.com/Akash1430/POCPortal/internal/infrastructure/database"
	"github.com/Akash1430/POCPortal/internal/infrastructure/logging"
	"github.com/Akash1430/POCPortal/internal/infrastructure/metrics"
	"github.com/Akash1430/POCPortal/internal/permission"
	"github.com/Akash1430/POCPortal/migrations"
)

const (
	testSecret   = "test-secret-key-at-least-32-characters-long"
	testPassword = "Correct1!"
)

// testEnv is a server wired to real repositories over a fresh database,
// with a bootstrapped SYSADMIN.
type testEnv struct {
	srv       *Server
	handler   http.Handler
	db        *sql.DB
	manager   *auth.Manager
	auditRepo *audit.SQLiteRepository

	sysadminID       string
	sysadminPassword string
}

func newTestEnv(t *testing.T, mutate ...func(*Deps)) *testEnv {
	t.Helper()
	ctx := t.Context()

	db, err := database.Open(ctx, config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "api-test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup
	if err := db.Migrate(ctx, migrations.FS()); err != nil {
		t.Fatalf("applying migrations: %v", err)
	}

	signer, err := auth.NewSigner(testSecret, "orgadmin", "orgadmin-clients", 0)
	if err != nil {
		t.Fatalf("NewSigner() error = %v", err)
	}
	accounts := auth.NewAccountRepository(db.DB)
	roles := auth.NewRoleRepository(db.DB)
	tokens := auth.NewTokenService(auth.NewTokenRepository(db.DB), accounts, signer)
	manager := auth.NewManager(accounts, roles, tokens)
	evaluator := permission.NewEvaluator(permission.NewCatalogRepository(db.DB), roles)

	password, err := auth.Bootstrap(ctx, accounts, roles,
		auth.BootstrapAccount{Username: "sysadmin", Email: "sysadmin@example.com"}, logging.Discard().Logger)
	if err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}
	admin, err := accounts.GetByUsername(ctx, "sysadmin")
	if err != nil {
		t.Fatalf("GetByUsername() error = %v", err)
	}

	env := &testEnv{
		db:               db.DB,
		manager:          manager,
		auditRepo:        audit.NewSQLiteRepository(db.DB),
		sysadminID:       admin.ID,
		sysadminPassword: password,
	}

	deps := Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
			RefreshCookie: config.RefreshCookieConfig{
				Name:     "refreshToken",
				Path:     "/api/v1/auth",
				Secure:   true,
				SameSite: "strict",
			},
		},
		Metrics:   config.MetricsConfig{Enabled: true, Path: "/metrics"},
		Logger:    logging.Discard(),
		Accounts:  manager,
		Tokens:    tokens,
		Evaluator: evaluator,
		AuditRepo: env.auditRepo,
		Collector: metrics.New(),
		Health:    map[string]HealthChecker{"database": db},
		Version:   "test",
	}
	for _, m := range mutate {
		m(&deps)
	}

	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	env.srv = srv
	env.handler = srv.Handler()
	return env
}

// createAccount registers an account through the manager as the SYSADMIN.
func (e *testEnv) createAccount(t *testing.T, username string, role auth.RoleCode) *auth.Account {
	t.Helper()
	account, err := e.manager.Register(t.Context(), e.sysadminID, auth.RegisterRequest{
		Username:  username,
		Email:     username + "@example.com",
		FirstName: "Test",
		LastName:  username,
		Password:  testPassword,
		RoleCode:  role,
	})
	if err != nil {
		t.Fatalf("Register(%s) error = %v", username, err)
	}
	return account
}

// do sends a request through the full middleware stack.
func (e *testEnv) do(t *testing.T, method, path string, body any, token string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func newRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, http.NoBody)
}

func serve(e *testEnv, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// login returns the access token and the refresh cookie.
func (e *testEnv) login(t *testing.T, username, password string) (string, *http.Cookie) {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/api/v1/auth/login", loginRequest{Username: username, Password: password}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login(%s) status = %d, body = %s", username, rec.Code, rec.Body.String())
	}
	res := decode[sessionResponse](t, rec)
	cookie := refreshCookieFrom(t, rec)
	return res.Data.AccessToken, cookie
}

func (e *testEnv) sysadminToken(t *testing.T) string {
	t.Helper()
	token, _ := e.login(t, "sysadmin", e.sysadminPassword)
	return token
}

func refreshCookieFrom(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "refreshToken" {
			return c
		}
	}
	t.Fatal("response did not set the refresh cookie")
	return nil
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) auth.Result[T] {
	t.Helper()
	var res auth.Result[T]
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	return res
}

func TestNew_RequiresDependencies(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Error("New() without a logger should fail")
	}
	if _, err := New(Deps{Logger: logging.Discard()}); err == nil {
		t.Error("New() without the auth services should fail")
	}
}

type stubHealth struct{ err error }

func (h stubHealth) HealthCheck(context.Context) error { return h.err }

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/v1/health", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	res := decode[healthReport](t, rec)
	if res.Data.Components["database"] != "ok" || res.Data.Version != "test" {
		t.Errorf("health = %+v", res.Data)
	}

	degraded := newTestEnv(t, func(d *Deps) {
		d.Health["redis"] = stubHealth{err: errors.New("connection refused")}
	})
	rec = degraded.do(t, http.MethodGet, "/api/v1/health", nil, "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("degraded status = %d, want 503", rec.Code)
	}
	res = decode[healthReport](t, rec)
	if res.Success || res.Data.Components["redis"] != "unhealthy" {
		t.Errorf("degraded health = %+v", res)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/api/v1/health", nil, "")

	rec := env.do(t, http.MethodGet, "/api/v1/metrics", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte(`route="/api/v1/health"`)) {
		t.Error("exposition should carry the health route label")
	}

	off := newTestEnv(t, func(d *Deps) { d.Collector = nil })
	if rec := off.do(t, http.MethodGet, "/api/v1/metrics", nil, ""); rec.Code != http.StatusNotFound {
		t.Errorf("metrics without a collector status = %d, want 404", rec.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{auth.ErrAccountNotFound, http.StatusNotFound},
		{auth.ErrBadCredentials, http.StatusUnauthorized},
		{auth.ErrAccountFrozen, http.StatusForbidden},
		{auth.ErrTopTierImmutable, http.StatusForbidden},
		{auth.ErrUsernameTaken, http.StatusConflict},
		{auth.ErrTokenAlreadyInactive, http.StatusConflict},
		{auth.InvalidInput("bad"), http.StatusBadRequest},
		{permission.ErrCapabilityNotFound, http.StatusNotFound},
		{errors.New("disk I/O error"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestNotFoundRoute(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/v1/nope", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if res := decode[any](t, rec); res.Success {
		t.Error("unknown route should not report success")
	}
}

func TestRequestIDHeader(t *testing.T) {
	env := newTestEnv(t)

	req := newRequest(http.MethodGet, "/api/v1/health")
	req.Header.Set("X-Request-ID", "fixed-id")
	rec := serve(env, req)
	if got := rec.Header().Get("X-Request-ID"); got != "fixed-id" {
		t.Errorf("X-Request-ID = %q, want fixed-id", got)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/health", nil, "")
	if len(rec.Header().Get("X-Request-ID")) != 2*requestIDBytes {
		t.Errorf("generated X-Request-ID = %q", rec.Header().Get("X-Request-ID"))
	}
}
