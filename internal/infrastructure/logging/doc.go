// Package logging builds the structured logger shared by the orgadmin
// server, CLI and background sinks.
//
// A Logger wraps *slog.Logger and stamps every record with service=orgadmin
// and the build version. Handlers are JSON or text, written to stdout or
// stderr, at the level named in the logging section:
//
//	logging:
//	  level: "info"
//	  format: "json"
//	  output: "stdout"
//
// Components that only need to log take a plain *slog.Logger (logger.Logger);
// tests use Discard.
//
// Passwords, refresh tokens, access tokens and the signing key are never
// logged. Log account IDs and usernames instead.
package logging
