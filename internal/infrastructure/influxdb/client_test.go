package influxdb

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Akash1430/POCPortal/internal/infrastructure/config"
)

// testConfig returns a configuration for a local dev InfluxDB.
func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "orgadmin-dev-token",
		Org:           "orgadmin",
		Bucket:        "security",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

// skipIfNoInfluxDB skips the test if InfluxDB is not running.
func skipIfNoInfluxDB(t *testing.T) *Client {
	t.Helper()
	client, err := Connect(context.Background(), testConfig())
	if err != nil {
		t.Skip("InfluxDB not available, skipping integration test")
	}
	t.Cleanup(func() { client.Close() }) //nolint:errcheck // test cleanup
	return client
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	client, err := Connect(context.Background(), cfg)
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
	if client != nil {
		t.Error("Connect() should return nil client when disabled")
	}
}

func TestConnect_InvalidURL(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:59999"

	_, err := Connect(context.Background(), cfg)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Fatalf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestAuthEventPoint(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := authEventPoint(AuthEvent{
		Type:      "tokens_revoked",
		Outcome:   "success",
		RoleCode:  "USERADMIN",
		AccountID: "usr-abc12345",
		ActorID:   "usr-def67890",
		Count:     3,
		At:        at,
	})

	if p.Name() != MeasurementAuthEvents {
		t.Errorf("Name() = %q, want %q", p.Name(), MeasurementAuthEvents)
	}
	if !p.Time().Equal(at) {
		t.Errorf("Time() = %v, want %v", p.Time(), at)
	}

	tags := map[string]string{}
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	if tags["event"] != "tokens_revoked" || tags["outcome"] != "success" || tags["role"] != "USERADMIN" {
		t.Errorf("tags = %v", tags)
	}
	if _, ok := tags["account_id"]; ok {
		t.Error("account_id must be a field, not a tag")
	}

	fields := map[string]any{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	if fields["count"] != int64(3) {
		t.Errorf("count field = %v (%T), want 3", fields["count"], fields["count"])
	}
	if fields["account_id"] != "usr-abc12345" || fields["actor_id"] != "usr-def67890" {
		t.Errorf("fields = %v", fields)
	}
}

func TestAuthEventPoint_OptionalParts(t *testing.T) {
	p := authEventPoint(AuthEvent{Type: "login_failed"})

	if len(p.TagList()) != 1 {
		t.Errorf("TagList() = %d tags, want only event", len(p.TagList()))
	}
	if p.Time().IsZero() {
		t.Error("zero event time should default to now")
	}
}

func TestClient_Disconnected(t *testing.T) {
	c := &Client{}

	if c.IsConnected() {
		t.Error("IsConnected() = true for zero client")
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}

	// Must not panic on a nil writeAPI.
	c.WriteAuthEvent(AuthEvent{Type: "login_succeeded"})
	c.Flush()

	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	var nilClient *Client
	if err := nilClient.Close(); err != nil {
		t.Errorf("Close() on nil error = %v", err)
	}
}

func TestIntegration_WriteAuthEvent(t *testing.T) {
	client := skipIfNoInfluxDB(t)

	var mu sync.Mutex
	var writeErr error
	client.SetOnError(func(err error) {
		mu.Lock()
		writeErr = err
		mu.Unlock()
	})

	client.WriteAuthEvent(AuthEvent{Type: "login_succeeded", Outcome: "success", RoleCode: "SYSADMIN"})
	client.Flush()

	mu.Lock()
	defer mu.Unlock()
	if writeErr != nil {
		t.Errorf("async write error = %v", writeErr)
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}
