package auth

import "errors"

// Failure kinds. Every error returned by the engine wraps exactly one of
// these, so callers classify with errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredential  = errors.New("invalid credential")
	ErrAccountIneligible  = errors.New("account ineligible")
	ErrPolicyViolation    = errors.New("policy violation")
	ErrConflict           = errors.New("conflict")
	ErrAlreadyInactive    = errors.New("already inactive")
	ErrConfigurationFault = errors.New("configuration fault")
	ErrInvalidInput       = errors.New("invalid input")
)

// kindError is a caller-visible message tagged with a failure kind.
type kindError struct {
	msg  string
	kind error
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

// NewError returns an error with the given caller-visible message that
// matches kind under errors.Is.
func NewError(kind error, msg string) error {
	return &kindError{msg: msg, kind: kind}
}

// InvalidInput returns a request validation error.
func InvalidInput(msg string) error {
	return NewError(ErrInvalidInput, msg)
}

// Specific errors.
var (
	ErrAccountNotFound = NewError(ErrNotFound, "user not found")
	ErrRoleNotFound    = NewError(ErrNotFound, "role not found")
	ErrRoleMissing     = NewError(ErrNotFound, "user role not found")
	ErrTokenNotFound   = NewError(ErrNotFound, "token not found")

	ErrBadCredentials          = NewError(ErrInvalidCredential, "invalid username or password")
	ErrTokenInactive           = NewError(ErrInvalidCredential, "invalid or expired refresh token")
	ErrAccessTokenInvalid      = NewError(ErrInvalidCredential, "invalid access token")
	ErrCurrentPasswordMismatch = NewError(ErrInvalidCredential, "current password is incorrect")

	ErrAccountFrozen      = NewError(ErrAccountIneligible, "account is frozen")
	ErrAccountUnavailable = NewError(ErrAccountIneligible, "user not found or account is frozen")
	ErrLoginLocked        = NewError(ErrAccountIneligible, "too many failed login attempts")

	ErrTopTierImmutable     = NewError(ErrPolicyViolation, "SYSADMIN accounts and grants cannot be modified")
	ErrTopTierNotAssignable = NewError(ErrPolicyViolation, "cannot assign the SYSADMIN role")
	ErrInsufficientTier     = NewError(ErrPolicyViolation, "insufficient privileges for this operation")
	ErrSelfDeletion         = NewError(ErrPolicyViolation, "cannot delete your own account")
	ErrNotUserAdmin         = NewError(ErrPolicyViolation, "target user is not a user administrator")
	ErrProtectedRole        = NewError(ErrPolicyViolation, "this role cannot be deleted")

	ErrUsernameTaken = NewError(ErrConflict, "username already exists")
	ErrEmailTaken    = NewError(ErrConflict, "email already exists")
	ErrRoleExists    = NewError(ErrConflict, "role name or reference code already exists")
	ErrRoleInUse     = NewError(ErrConflict, "role is still assigned to users")

	ErrTokenAlreadyInactive = NewError(ErrAlreadyInactive, "token is already revoked or expired")

	ErrSigningKeyTooShort = NewError(ErrConfigurationFault, "JWT signing key must be at least 32 bytes")
)

// ErrLockoutUnavailable indicates the lockout backend is unreachable.
var ErrLockoutUnavailable = errors.New("lockout backend unavailable")

// Kind names the failure kind of err for logs, metrics and status mapping.
// Errors outside the taxonomy report "internal".
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidCredential):
		return "invalid_credential"
	case errors.Is(err, ErrAccountIneligible):
		return "account_ineligible"
	case errors.Is(err, ErrPolicyViolation):
		return "policy_violation"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrAlreadyInactive):
		return "already_inactive"
	case errors.Is(err, ErrConfigurationFault):
		return "configuration_fault"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	default:
		return "internal"
	}
}
