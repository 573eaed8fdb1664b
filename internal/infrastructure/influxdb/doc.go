// Package influxdb records orgadmin security events as InfluxDB time series.
//
// Each login, failed login, rotation, revocation, freeze or password change
// becomes one point in the auth_events measurement, tagged by event type and
// role so dashboards can chart failed logins per role or revocation bursts.
//
// Writes are non-blocking and batched by the client library. Async write
// errors are delivered to the callback set with SetOnError.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // run without time series
//	}
//	defer client.Close()
//
//	client.WriteAuthEvent(influxdb.AuthEvent{Type: "login_failed", Outcome: "failure"})
package influxdb
