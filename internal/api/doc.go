// Package api implements the HTTP REST API for the orgadmin service.
//
// This package provides:
//   - Authentication endpoints: login, refresh, logout, token revocation
//     and password changes
//   - Role and permission administration (features, permission, module routes)
//   - User administrator management (useradmin routes)
//   - Audit log listing, health and Prometheus metrics
//   - Middleware stack (request ID, logging, recovery, CORS, body limit,
//     bearer authentication, capability guards, login rate limiting)
//
// # Responses
//
// Every body is an auth.Result envelope: {"success", "message", "data"}.
// Failure kinds map to statuses in statusFor. Login and refresh failures
// are reported only as "invalid credentials"; the specific cause is logged.
//
// # Sessions
//
// The access token is returned in the body and sent back as a bearer
// token. The refresh token never appears in a body: it travels in an
// HttpOnly cookie scoped to the auth routes.
package api
