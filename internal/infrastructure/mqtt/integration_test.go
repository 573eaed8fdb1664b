//go:build integration

package mqtt

import (
	"context"
	"testing"
	"time"
)

// These tests require a running MQTT broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

func TestIntegration_ConnectPublishClose(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "orgadmin-int-publish"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close() //nolint:errcheck // test cleanup

	if !client.IsConnected() {
		t.Fatal("IsConnected() = false after Connect")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	event := map[string]string{"type": "login_succeeded", "account_id": "usr-int"}
	if err := client.PublishJSON(Topics{}.SecurityEvent("login_succeeded"), event); err != nil {
		t.Errorf("PublishJSON() error = %v", err)
	}
}

func TestIntegration_BrokerRefused(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.Port = 19998

	if _, err := Connect(cfg); err == nil {
		t.Fatal("Connect() should fail for refused connection")
	}
}
