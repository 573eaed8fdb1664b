// Package auth provides authentication and account lifecycle for the
// orgadmin backend.
//
// It implements:
//   - Argon2id password hashing (OWASP 2025 recommendation), with legacy
//     bcrypt hashes accepted and upgraded on the next successful login
//   - HS256 access credentials carrying the caller's identity and role code
//   - Opaque refresh credentials stored as SHA-256 hashes, rotated on every
//     use and redeemable at most once
//   - The account state machine (Active, Frozen) with cascading session
//     revocation on freeze and password changes
//   - A Redis-backed failed-login lockout
//
// The SYSADMIN role is the immutable top tier: it cannot be assigned,
// frozen, deleted or have its password reset through this package.
//
// Errors wrap one of the kind sentinels (ErrNotFound, ErrInvalidCredential,
// ErrAccountIneligible, ErrPolicyViolation, ErrConflict, ErrAlreadyInactive,
// ErrConfigurationFault, ErrInvalidInput). Result and Message turn an error
// into the caller-visible envelope without leaking storage faults.
package auth
