package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

var (
	errCreatorNotFound      = NewError(ErrNotFound, "creating user not found")
	errActorNotFound        = NewError(ErrNotFound, "acting user not found")
	errUserAdminCreation    = NewError(ErrPolicyViolation, "only SYSADMIN users can create USERADMIN users")
	errTopTierDetails       = NewError(ErrPolicyViolation, "access to SYSADMIN user details is restricted")
	errTopTierRoleChange    = NewError(ErrPolicyViolation, "cannot change the role of a SYSADMIN user")
	errNoRolesForCodes      = NewError(ErrNotFound, "no valid roles found for the provided role codes")
	errEmptyRoleCodes       = InvalidInput("role codes cannot be empty")
	errCredentialsRequired  = InvalidInput("username and password are required")
	errPasswordTooShort     = InvalidInput("password must be at least 8 characters")
	errNewPasswordTooShort  = InvalidInput("new password must be at least 6 characters")
	errInvalidUsername      = InvalidInput("username must be 1-50 characters: letters, digits, dot, hyphen or underscore")
	errInvalidEmail         = InvalidInput("a valid email address of at most 200 characters is required")
	errInvalidName          = InvalidInput("first and last name are required and must be at most 100 characters")
	errRoleCodeRequired     = InvalidInput("role reference code is required")
	errCurrentPasswordEmpty = InvalidInput("current password is required")
)

// Manager applies the account lifecycle rules: login, registration,
// password changes, freezing, profile updates and deletion.
// Security-relevant changes cascade into refresh token revocation.
type Manager struct {
	accounts AccountRepository
	roles    RoleRepository
	tokens   *TokenService
	lockout  Lockout
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
}

// NewManager creates a lifecycle manager.
func NewManager(accounts AccountRepository, roles RoleRepository, tokens *TokenService, opts ...Option) *Manager {
	o := buildOptions(opts)
	return &Manager{
		accounts: accounts,
		roles:    roles,
		tokens:   tokens,
		lockout:  o.lockout,
		observer: o.observer,
		logger:   o.logger,
		now:      o.now,
	}
}

// Login verifies credentials and returns a token pair. Credential
// correctness and account eligibility are checked independently: a frozen
// account is refused with ErrAccountFrozen even when the password is right.
func (m *Manager) Login(ctx context.Context, username, password string) (*TokenPair, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, errCredentialsRequired
	}

	locked, err := m.lockout.Locked(ctx, username)
	if err != nil {
		m.logger.Warn("lockout check failed, continuing", "error", err)
	}
	if locked {
		m.emit(ctx, Event{Type: EventLoginLocked, Outcome: OutcomeFailure, Reason: username})
		return nil, ErrLoginLocked
	}

	account, err := m.accounts.GetByUsername(ctx, username)
	if errors.Is(err, ErrAccountNotFound) {
		m.loginFailed(ctx, username, "", "unknown username")
		return nil, ErrBadCredentials
	}
	if err != nil {
		return nil, err
	}

	ok, err := VerifyPassword(password, account.PasswordHash)
	if err != nil {
		m.logger.Warn("stored password hash unreadable", "account_id", account.ID, "error", err)
	}
	if !ok {
		m.loginFailed(ctx, username, account.ID, "password mismatch")
		return nil, ErrBadCredentials
	}

	if account.IsFrozen {
		m.emit(ctx, Event{Type: EventLoginFailed, Outcome: OutcomeFailure, AccountID: account.ID,
			RoleCode: account.RoleCode, Reason: "account frozen"})
		return nil, ErrAccountFrozen
	}
	if account.RoleCode == "" {
		return nil, ErrRoleMissing
	}

	if NeedsRehash(account.PasswordHash) {
		if hash, ok := m.rehash(ctx, account.ID, password); ok {
			account.PasswordHash = hash
		}
	}

	now := m.now()
	if err := m.accounts.RecordLogin(ctx, account.ID, now); err != nil {
		return nil, err
	}
	stamped := parseTime(formatTime(now))
	account.LastLoginAt = &stamped

	if err := m.lockout.Reset(ctx, username); err != nil {
		m.logger.Warn("lockout reset failed", "error", err)
	}

	// The refresh insert re-checks the account, so a freeze or password
	// change that lands after the checks above refuses the session.
	pair, err := m.tokens.IssuePair(ctx, account)
	if errors.Is(err, ErrAccountUnavailable) {
		m.emit(ctx, Event{Type: EventLoginFailed, Outcome: OutcomeFailure, AccountID: account.ID,
			RoleCode: account.RoleCode, Reason: "account changed during login"})
		return nil, ErrAccountFrozen
	}
	if err != nil {
		return nil, err
	}

	m.emit(ctx, Event{Type: EventLoginSucceeded, Outcome: OutcomeSuccess, AccountID: account.ID, RoleCode: account.RoleCode})
	return pair, nil
}

func (m *Manager) loginFailed(ctx context.Context, username, accountID, reason string) {
	locked, err := m.lockout.RecordFailure(ctx, username)
	if err != nil {
		m.logger.Warn("recording failed login", "error", err)
	}
	m.emit(ctx, Event{Type: EventLoginFailed, Outcome: OutcomeFailure, AccountID: accountID, Reason: reason})
	if locked {
		m.emit(ctx, Event{Type: EventLoginLocked, Outcome: OutcomeFailure, AccountID: accountID, Reason: username})
	}
}

func (m *Manager) rehash(ctx context.Context, accountID, password string) (string, bool) {
	hash, err := HashPassword(password)
	if err != nil {
		m.logger.Warn("rehashing legacy password", "account_id", accountID, "error", err)
		return "", false
	}
	if err := m.accounts.UpdatePasswordHash(ctx, accountID, hash); err != nil {
		m.logger.Warn("storing rehashed password", "account_id", accountID, "error", err)
		return "", false
	}
	m.logger.Info("upgraded legacy password hash", "account_id", accountID)
	return hash, true
}

// Register creates an account on behalf of creatorID. The top-tier role
// is refused before anything else is looked at.
func (m *Manager) Register(ctx context.Context, creatorID string, req RegisterRequest) (*Account, error) {
	if req.RoleCode.IsTopTier() {
		return nil, ErrTopTierNotAssignable
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if err := validateProfile(req.Username, req.Email, req.FirstName, req.LastName); err != nil {
		return nil, err
	}
	if len(req.Password) < MinPasswordLength {
		return nil, errPasswordTooShort
	}
	if strings.TrimSpace(string(req.RoleCode)) == "" {
		return nil, errRoleCodeRequired
	}

	creator, err := m.accounts.GetByID(ctx, creatorID)
	if errors.Is(err, ErrAccountNotFound) {
		return nil, errCreatorNotFound
	}
	if err != nil {
		return nil, err
	}
	if creator.RoleCode == "" {
		return nil, ErrRoleMissing
	}
	if req.RoleCode.Is(RoleUserAdmin) && !creator.RoleCode.IsTopTier() {
		return nil, errUserAdminCreation
	}

	role, err := m.roles.GetByCode(ctx, req.RoleCode)
	if err != nil {
		return nil, err
	}

	if err := m.checkUnique(ctx, req.Username, req.Email, ""); err != nil {
		return nil, err
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	account := &Account{
		Username:     req.Username,
		Email:        req.Email,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		PasswordHash: hash,
		RoleID:       role.ID,
		RoleCode:     role.RefCode,
		RoleName:     role.Name,
		CreatedBy:    creator.ID,
	}
	if err := m.accounts.Create(ctx, account); err != nil {
		return nil, err
	}

	m.emit(ctx, Event{Type: EventAccountRegistered, Outcome: OutcomeSuccess, AccountID: account.ID,
		ActorID: creator.ID, RoleCode: role.RefCode})
	return account, nil
}

// ChangePassword is the self-service password change. It stamps the
// password-changed time and revokes every active session.
func (m *Manager) ChangePassword(ctx context.Context, accountID, current, next string) error {
	if current == "" {
		return errCurrentPasswordEmpty
	}
	if len(next) < MinChangedPasswordLength {
		return errNewPasswordTooShort
	}

	account, err := m.accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if account.IsFrozen {
		return ErrAccountFrozen
	}

	ok, err := VerifyPassword(current, account.PasswordHash)
	if err != nil {
		m.logger.Warn("stored password hash unreadable", "account_id", account.ID, "error", err)
	}
	if !ok {
		return ErrCurrentPasswordMismatch
	}

	hash, err := HashPassword(next)
	if err != nil {
		return err
	}
	now := m.now()
	revoked, err := m.accounts.ChangePassword(ctx, PasswordChange{
		AccountID:    account.ID,
		PasswordHash: hash,
		ChangedAt:    &now,
		ActorID:      account.ID,
		Reason:       ReasonPasswordChanged,
		Now:          now,
	})
	if err != nil {
		return err
	}

	m.emit(ctx, Event{Type: EventPasswordChanged, Outcome: OutcomeSuccess, AccountID: account.ID,
		ActorID: account.ID, RoleCode: account.RoleCode, Count: revoked})
	return nil
}

// AdminChangePassword sets another account's password without the current
// one. The password-changed time is cleared rather than stamped.
func (m *Manager) AdminChangePassword(ctx context.Context, actorID, targetID, next string) error {
	target, err := m.accounts.GetByID(ctx, targetID)
	if err != nil {
		return err
	}
	if target.RoleCode.IsTopTier() {
		return ErrTopTierImmutable
	}

	actor, err := m.actor(ctx, actorID)
	if err != nil {
		return err
	}
	if actor.RoleCode.Tier() < RoleUserAdmin.Tier() {
		return ErrInsufficientTier
	}

	if len(next) < MinChangedPasswordLength {
		return errNewPasswordTooShort
	}

	hash, err := HashPassword(next)
	if err != nil {
		return err
	}
	now := m.now()
	revoked, err := m.accounts.ChangePassword(ctx, PasswordChange{
		AccountID:    target.ID,
		PasswordHash: hash,
		ChangedAt:    nil,
		ActorID:      actor.ID,
		Reason:       ReasonPasswordResetBy(actor.ID),
		Now:          now,
	})
	if err != nil {
		return err
	}

	m.emit(ctx, Event{Type: EventPasswordReset, Outcome: OutcomeSuccess, AccountID: target.ID,
		ActorID: actor.ID, RoleCode: target.RoleCode, Count: revoked})
	return nil
}

// Freeze freezes an account and revokes its sessions.
func (m *Manager) Freeze(ctx context.Context, actorID, targetID string) (*Account, error) {
	return m.SetFrozen(ctx, actorID, targetID, true)
}

// Unfreeze returns a frozen account to the active state.
func (m *Manager) Unfreeze(ctx context.Context, actorID, targetID string) (*Account, error) {
	return m.SetFrozen(ctx, actorID, targetID, false)
}

// SetFrozen moves an account between Active and Frozen.
func (m *Manager) SetFrozen(ctx context.Context, actorID, targetID string, frozen bool) (*Account, error) {
	target, err := m.accounts.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if target.RoleCode.IsTopTier() {
		return nil, ErrTopTierImmutable
	}

	revoked, err := m.accounts.SetFrozen(ctx, target.ID, frozen, actorID, m.now())
	if err != nil {
		return nil, err
	}

	ev := Event{Type: EventAccountUnfrozen, Outcome: OutcomeSuccess, AccountID: target.ID,
		ActorID: actorID, RoleCode: target.RoleCode}
	if frozen {
		ev.Type = EventAccountFrozen
		ev.Count = revoked
		ev.Reason = ReasonFrozenBy(actorID)
	}
	m.emit(ctx, ev)

	return m.accounts.GetByID(ctx, target.ID)
}

// UpdateProfile replaces names, username, email and optionally the role.
// A top-tier account may only be updated by itself, and no reassignment may
// move an account into or out of the top tier.
func (m *Manager) UpdateProfile(ctx context.Context, actorID, targetID string, changes ProfileUpdate) (*Account, error) {
	changes.Username = strings.TrimSpace(changes.Username)
	changes.Email = strings.TrimSpace(changes.Email)
	if err := validateProfile(changes.Username, changes.Email, changes.FirstName, changes.LastName); err != nil {
		return nil, err
	}
	// A blank code leaves the role unchanged.
	if changes.RoleCode != nil && strings.TrimSpace(string(*changes.RoleCode)) == "" {
		changes.RoleCode = nil
	}

	target, err := m.accounts.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if target.RoleCode.IsTopTier() && target.ID != actorID {
		return nil, ErrTopTierImmutable
	}

	if err := m.checkUnique(ctx, changes.Username, changes.Email, target.ID); err != nil {
		return nil, err
	}

	if changes.RoleCode != nil && !changes.RoleCode.Is(target.RoleCode) {
		if target.RoleCode.IsTopTier() {
			return nil, errTopTierRoleChange
		}
		if changes.RoleCode.IsTopTier() {
			return nil, ErrTopTierNotAssignable
		}
		role, err := m.roles.GetByCode(ctx, *changes.RoleCode)
		if err != nil {
			return nil, err
		}
		target.RoleID = role.ID
	}

	target.Username = changes.Username
	target.Email = changes.Email
	target.FirstName = strings.TrimSpace(changes.FirstName)
	target.LastName = strings.TrimSpace(changes.LastName)
	target.UpdatedBy = actorID
	if err := m.accounts.UpdateProfile(ctx, target); err != nil {
		return nil, err
	}

	updated, err := m.accounts.GetByID(ctx, target.ID)
	if err != nil {
		return nil, err
	}
	m.emit(ctx, Event{Type: EventAccountUpdated, Outcome: OutcomeSuccess, AccountID: updated.ID,
		ActorID: actorID, RoleCode: updated.RoleCode})
	return updated, nil
}

// Delete removes any account except a top-tier one or the actor itself.
func (m *Manager) Delete(ctx context.Context, actorID, targetID string) error {
	target, err := m.accounts.GetByID(ctx, targetID)
	if err != nil {
		return err
	}
	if target.RoleCode.IsTopTier() {
		return ErrTopTierImmutable
	}
	return m.delete(ctx, actorID, target)
}

// AdminDelete removes a USERADMIN account. Other tiers are refused.
func (m *Manager) AdminDelete(ctx context.Context, actorID, targetID string) error {
	target, err := m.accounts.GetByID(ctx, targetID)
	if err != nil {
		return err
	}
	if target.RoleCode.IsTopTier() {
		return ErrTopTierImmutable
	}
	if !target.RoleCode.Is(RoleUserAdmin) {
		return ErrNotUserAdmin
	}
	return m.delete(ctx, actorID, target)
}

func (m *Manager) delete(ctx context.Context, actorID string, target *Account) error {
	if target.ID == actorID {
		return ErrSelfDeletion
	}
	if err := m.accounts.Delete(ctx, target.ID); err != nil {
		return err
	}
	m.emit(ctx, Event{Type: EventAccountDeleted, Outcome: OutcomeSuccess, AccountID: target.ID,
		ActorID: actorID, RoleCode: target.RoleCode})
	return nil
}

// GetAccount returns an account for administrative viewing. Top-tier
// account details are restricted.
func (m *Manager) GetAccount(ctx context.Context, id string) (*Account, error) {
	account, err := m.accounts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if account.RoleCode.IsTopTier() {
		return nil, errTopTierDetails
	}
	return account, nil
}

// CurrentAccount returns the caller's own account.
func (m *Manager) CurrentAccount(ctx context.Context, id string) (*Account, error) {
	return m.accounts.GetByID(ctx, id)
}

// ListAccounts returns the accounts holding any of the given roles.
func (m *Manager) ListAccounts(ctx context.Context, codes []RoleCode) ([]Account, error) {
	if len(codes) == 0 {
		return nil, errEmptyRoleCodes
	}
	roles, err := m.roles.ListByCodes(ctx, codes)
	if err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		return nil, errNoRolesForCodes
	}
	ids := make([]int64, len(roles))
	for i, r := range roles {
		ids[i] = r.ID
	}
	return m.accounts.ListByRoleIDs(ctx, ids)
}

// RevokeSessions revokes every active refresh token of targetID. Accounts
// may always revoke their own sessions; revoking someone else's requires
// a strictly higher tier.
func (m *Manager) RevokeSessions(ctx context.Context, actorID, targetID, reason string) (int64, error) {
	if actorID != targetID {
		actor, err := m.actor(ctx, actorID)
		if err != nil {
			return 0, err
		}
		target, err := m.accounts.GetByID(ctx, targetID)
		if err != nil {
			return 0, err
		}
		if actor.RoleCode.Tier() <= target.RoleCode.Tier() {
			return 0, ErrInsufficientTier
		}
	}
	return m.tokens.RevokeAll(ctx, targetID, reason, actorID)
}

func (m *Manager) actor(ctx context.Context, id string) (*Account, error) {
	actor, err := m.accounts.GetByID(ctx, id)
	if errors.Is(err, ErrAccountNotFound) {
		return nil, errActorNotFound
	}
	if err != nil {
		return nil, err
	}
	if actor.RoleCode == "" {
		return nil, ErrRoleMissing
	}
	return actor, nil
}

func (m *Manager) checkUnique(ctx context.Context, username, email, excludeID string) error {
	taken, err := m.accounts.UsernameTaken(ctx, username, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return ErrUsernameTaken
	}
	taken, err = m.accounts.EmailTaken(ctx, email, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return ErrEmailTaken
	}
	return nil
}

func validateProfile(username, email, firstName, lastName string) error {
	if !IsValidUsername(username) {
		return errInvalidUsername
	}
	if !IsValidEmail(email) {
		return errInvalidEmail
	}
	first, last := strings.TrimSpace(firstName), strings.TrimSpace(lastName)
	if first == "" || last == "" || len(first) > maxNameLength || len(last) > maxNameLength {
		return errInvalidName
	}
	return nil
}

func (m *Manager) emit(ctx context.Context, ev Event) {
	if ev.At.IsZero() {
		ev.At = m.now()
	}
	m.observer.OnSecurityEvent(ctx, ev)
}
