package auth

import (
	"regexp"
	"strings"
	"time"
)

// usernamePattern defines the valid format for usernames:
// alphanumeric, dots, hyphens, underscores, 1-50 characters.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,50}$`)

// emailPattern is a pragmatic shape check, not RFC 5322.
var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+$`)

const (
	maxUsernameLength = 50
	maxNameLength     = 100
	maxEmailLength    = 200

	// MinPasswordLength applies to registration.
	MinPasswordLength = 8
	// MinChangedPasswordLength applies to self-service and admin password changes.
	MinChangedPasswordLength = 6
)

// IsValidUsername checks if a username meets format requirements.
func IsValidUsername(username string) bool {
	return len(username) <= maxUsernameLength && usernamePattern.MatchString(username)
}

// IsValidEmail checks the basic shape and length of an email address.
func IsValidEmail(email string) bool {
	return len(email) <= maxEmailLength && emailPattern.MatchString(email)
}

// RoleCode is a role's reference code. Codes compare case-insensitively.
type RoleCode string

const (
	// RoleSysAdmin is the top tier. Its grants, profile and password are
	// immutable through the engine and it can never be assigned by registration.
	RoleSysAdmin RoleCode = "SYSADMIN"

	// RoleUserAdmin manages ordinary accounts. Only the top tier may create one.
	RoleUserAdmin RoleCode = "USERADMIN"

	// Seeded roles without special tier rules.
	RoleManager  RoleCode = "MANAGER"
	RoleEmployee RoleCode = "EMPLOYEE"
	RoleHR       RoleCode = "HR"
)

// Is reports whether two codes name the same role.
func (c RoleCode) Is(other RoleCode) bool {
	return strings.EqualFold(string(c), string(other))
}

// IsTopTier reports whether the code is SYSADMIN.
func (c RoleCode) IsTopTier() bool {
	return c.Is(RoleSysAdmin)
}

// Tier ranks the well-known roles: 2 for SYSADMIN, 1 for USERADMIN, 0 otherwise.
func (c RoleCode) Tier() int {
	switch {
	case c.Is(RoleSysAdmin):
		return 2 //nolint:mnd // top tier
	case c.Is(RoleUserAdmin):
		return 1
	default:
		return 0
	}
}

// Role is a named tier assigned to accounts.
type Role struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	RefCode     RoleCode   `json:"ref_code"`
	Description string     `json:"description,omitempty"`
	IsVisible   bool       `json:"is_visible"`
	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedBy   string     `json:"updated_by,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// Account is a human login. RoleCode and RoleName are joined from roles on read.
type Account struct {
	ID                string     `json:"id"`
	Username          string     `json:"username"`
	Email             string     `json:"email"`
	FirstName         string     `json:"first_name"`
	LastName          string     `json:"last_name"`
	PasswordHash      string     `json:"-"` // never serialised
	RoleID            int64      `json:"role_id"`
	RoleCode          RoleCode   `json:"role_code"`
	RoleName          string     `json:"role_name"`
	IsFrozen          bool       `json:"is_frozen"`
	LastLoginAt       *time.Time `json:"last_login_at,omitempty"`
	PasswordChangedAt *time.Time `json:"password_changed_at,omitempty"`
	CreatedBy         string     `json:"created_by"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedBy         string     `json:"updated_by,omitempty"`
	UpdatedAt         *time.Time `json:"updated_at,omitempty"`
}

// RefreshToken is a stored refresh credential. Only the hash is persisted.
type RefreshToken struct {
	ID            string     `json:"id"`
	AccountID     string     `json:"account_id"`
	TokenHash     string     `json:"-"` // never serialised
	ExpiresAt     time.Time  `json:"expires_at"`
	Revoked       bool       `json:"revoked"`
	RevokedAt     *time.Time `json:"revoked_at,omitempty"`
	RevokedReason string     `json:"revoked_reason,omitempty"`
	ReplacedBy    string     `json:"replaced_by,omitempty"`
	CreatedBy     string     `json:"created_by"`
	CreatedAt     time.Time  `json:"created_at"`

	// credential is the password hash the token was issued against. When
	// set, the insert only lands if the account still holds that hash.
	credential string
}

// Expired reports whether the token's expiry has been reached.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Active reports whether the token can still be redeemed.
func (t *RefreshToken) Active(now time.Time) bool {
	return !t.Revoked && !t.Expired(now)
}

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken           string    `json:"access_token"`
	AccessTokenExpiresAt  time.Time `json:"access_token_expires_at"`
	RefreshToken          string    `json:"-"` // delivered as an HttpOnly cookie
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at"`
	Account               *Account  `json:"user"`
}

// RegisterRequest carries the fields for a new account.
type RegisterRequest struct {
	Username  string   `json:"username"`
	Email     string   `json:"email"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Password  string   `json:"password"`
	RoleCode  RoleCode `json:"role_ref_code"`
}

// ProfileUpdate carries the replacement profile for an account.
// A nil RoleCode leaves the role unchanged.
type ProfileUpdate struct {
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	RoleCode  *RoleCode `json:"role_ref_code,omitempty"`
}
