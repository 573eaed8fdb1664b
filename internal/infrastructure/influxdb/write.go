package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementAuthEvents is the measurement every security event is written to.
const MeasurementAuthEvents = "auth_events"

// AuthEvent is one security-relevant occurrence.
// Tags are low cardinality (type, outcome, role); identifiers go in fields.
type AuthEvent struct {
	Type      string
	Outcome   string // "success" or "failure"
	RoleCode  string
	AccountID string
	ActorID   string
	Count     int // tokens revoked, when applicable
	At        time.Time
}

// WriteAuthEvent queues one security event. No-op when disconnected.
func (c *Client) WriteAuthEvent(ev AuthEvent) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(authEventPoint(ev))
}

// authEventPoint converts an event into a line-protocol point.
func authEventPoint(ev AuthEvent) *write.Point {
	tags := map[string]string{
		"event": ev.Type,
	}
	if ev.Outcome != "" {
		tags["outcome"] = ev.Outcome
	}
	if ev.RoleCode != "" {
		tags["role"] = ev.RoleCode
	}

	fields := map[string]interface{}{
		"count": int64(ev.Count),
	}
	if ev.AccountID != "" {
		fields["account_id"] = ev.AccountID
	}
	if ev.ActorID != "" {
		fields["actor_id"] = ev.ActorID
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	return write.NewPoint(MeasurementAuthEvents, tags, fields, at)
}
