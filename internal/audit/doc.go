// Package audit persists security events to the audit_logs table.
//
// Recorder is an auth.Observer that enqueues events on a bounded channel
// and writes them from a single goroutine, so a slow or failing store
// never delays the request that produced the event. When the channel is
// full the entry is dropped and counted.
package audit
