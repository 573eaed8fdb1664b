// Package mqtt publishes orgadmin security events to an MQTT broker.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing with QoS guarantees and payload limits
//   - Last Will and Testament (LWT) so subscribers see the service go offline
//
// Downstream consumers (SIEM forwarders, alerting) subscribe to
// orgadmin/security/# and receive one JSON document per event: logins,
// failed logins, refresh rotations, revocations, freezes and password changes.
//
// The publisher is optional. When mqtt.enabled is false the service runs
// without it and events still reach the audit log.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.PublishJSON(mqtt.Topics{}.SecurityEvent("account_frozen"), payload)
package mqtt
