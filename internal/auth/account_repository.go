package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// AccountRepository defines the interface for account persistence.
type AccountRepository interface {
	Create(ctx context.Context, account *Account) error
	GetByID(ctx context.Context, id string) (*Account, error)
	GetByUsername(ctx context.Context, username string) (*Account, error)
	ListByRoleIDs(ctx context.Context, roleIDs []int64) ([]Account, error)
	Count(ctx context.Context) (int, error)
	UsernameTaken(ctx context.Context, username, excludeID string) (bool, error)
	EmailTaken(ctx context.Context, email, excludeID string) (bool, error)
	UpdateProfile(ctx context.Context, account *Account) error
	RecordLogin(ctx context.Context, id string, at time.Time) error
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
	ChangePassword(ctx context.Context, change PasswordChange) (int64, error)
	SetFrozen(ctx context.Context, id string, frozen bool, actorID string, now time.Time) (int64, error)
	Delete(ctx context.Context, id string) error
}

// PasswordChange describes a password replacement and the session
// revocation that accompanies it.
type PasswordChange struct {
	AccountID    string
	PasswordHash string
	// ChangedAt is stored as password_changed_at; nil clears it.
	ChangedAt *time.Time
	ActorID   string
	Reason    string
	Now       time.Time
}

// SQLiteAccountRepository implements AccountRepository using SQLite.
type SQLiteAccountRepository struct {
	db *sql.DB
}

// NewAccountRepository creates a new SQLite-backed account repository.
func NewAccountRepository(db *sql.DB) *SQLiteAccountRepository {
	return &SQLiteAccountRepository{db: db}
}

const accountSelect = `SELECT a.id, a.username, a.email, a.first_name, a.last_name, a.password_hash,
	a.role_id, r.ref_code, r.name, a.is_frozen, a.last_login_at, a.password_changed_at,
	a.created_by, a.created_at, a.updated_by, a.updated_at
	FROM accounts a LEFT JOIN roles r ON r.id = a.role_id`

// Create inserts a new account. The ID is generated if empty.
func (r *SQLiteAccountRepository) Create(ctx context.Context, account *Account) error {
	if account.ID == "" {
		account.ID = newID("usr-", 8)
	}

	now := formatTime(time.Now())
	account.CreatedAt = parseTime(now)

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (id, username, email, first_name, last_name, password_hash, role_id,
		 is_frozen, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		account.ID, account.Username, account.Email, account.FirstName, account.LastName,
		account.PasswordHash, account.RoleID, boolToInt(account.IsFrozen),
		account.CreatedBy, now,
	)
	if err != nil {
		return mapAccountWriteError("creating account", err)
	}
	return nil
}

// GetByID retrieves an account by its unique ID.
func (r *SQLiteAccountRepository) GetByID(ctx context.Context, id string) (*Account, error) {
	return scanAccount(r.db.QueryRowContext(ctx, accountSelect+" WHERE a.id = ?", id))
}

// GetByUsername retrieves an account by username, case-insensitively.
func (r *SQLiteAccountRepository) GetByUsername(ctx context.Context, username string) (*Account, error) {
	return scanAccount(r.db.QueryRowContext(ctx, accountSelect+" WHERE a.username = ?", username))
}

// ListByRoleIDs returns accounts holding any of the roles, oldest first.
func (r *SQLiteAccountRepository) ListByRoleIDs(ctx context.Context, roleIDs []int64) ([]Account, error) {
	accounts := []Account{}
	if len(roleIDs) == 0 {
		return accounts, nil
	}

	args := make([]any, len(roleIDs))
	for i, id := range roleIDs {
		args[i] = id
	}
	query := accountSelect + " WHERE a.role_id IN (" + placeholders(len(roleIDs)) + ") ORDER BY a.created_at ASC, a.id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating accounts: %w", err)
	}
	return accounts, nil
}

// Count returns the total number of accounts.
func (r *SQLiteAccountRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM accounts").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting accounts: %w", err)
	}
	return count, nil
}

// UsernameTaken reports whether another account already uses username.
func (r *SQLiteAccountRepository) UsernameTaken(ctx context.Context, username, excludeID string) (bool, error) {
	return r.exists(ctx, "username", username, excludeID)
}

// EmailTaken reports whether another account already uses email.
func (r *SQLiteAccountRepository) EmailTaken(ctx context.Context, email, excludeID string) (bool, error) {
	return r.exists(ctx, "email", email, excludeID)
}

func (r *SQLiteAccountRepository) exists(ctx context.Context, column, value, excludeID string) (bool, error) {
	var n int
	//nolint:gosec // G202: column is one of two constants
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM accounts WHERE "+column+" = ? AND id != ?", value, excludeID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking %s: %w", column, err)
	}
	return n > 0, nil
}

// UpdateProfile writes names, username, email and role.
func (r *SQLiteAccountRepository) UpdateProfile(ctx context.Context, account *Account) error {
	now := time.Now()
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET username = ?, email = ?, first_name = ?, last_name = ?, role_id = ?,
		 updated_by = ?, updated_at = ? WHERE id = ?`,
		account.Username, account.Email, account.FirstName, account.LastName, account.RoleID,
		nullString(account.UpdatedBy), formatTime(now), account.ID,
	)
	if err != nil {
		return mapAccountWriteError("updating account", err)
	}
	if err := requireRow(res, ErrAccountNotFound); err != nil {
		return err
	}
	ts := parseTime(formatTime(now))
	account.UpdatedAt = &ts
	return nil
}

// RecordLogin stamps the last successful login.
func (r *SQLiteAccountRepository) RecordLogin(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE accounts SET last_login_at = ? WHERE id = ?", formatTime(at), id)
	if err != nil {
		return fmt.Errorf("recording login: %w", err)
	}
	return requireRow(res, ErrAccountNotFound)
}

// UpdatePasswordHash replaces the stored hash without touching sessions.
// Used when upgrading a legacy hash on login.
func (r *SQLiteAccountRepository) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE accounts SET password_hash = ? WHERE id = ?", passwordHash, id)
	if err != nil {
		return fmt.Errorf("updating password hash: %w", err)
	}
	return requireRow(res, ErrAccountNotFound)
}

// ChangePassword stores the new hash and revokes every active session of
// the account in one transaction. It returns the number of revoked tokens.
func (r *SQLiteAccountRepository) ChangePassword(ctx context.Context, change PasswordChange) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning password transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	res, err := tx.ExecContext(ctx,
		`UPDATE accounts SET password_hash = ?, password_changed_at = ?, updated_by = ?, updated_at = ?
		 WHERE id = ?`,
		change.PasswordHash, nullTime(change.ChangedAt), nullString(change.ActorID),
		formatTime(change.Now), change.AccountID)
	if err != nil {
		return 0, fmt.Errorf("updating password: %w", err)
	}
	if err := requireRow(res, ErrAccountNotFound); err != nil {
		return 0, err
	}

	revoked, err := revokeActive(ctx, tx, change.AccountID, change.Reason, change.Now)
	if err != nil {
		return 0, fmt.Errorf("revoking sessions: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing password change: %w", err)
	}
	return revoked, nil
}

// SetFrozen sets the frozen flag. Freezing revokes every active session in
// the same transaction; unfreezing leaves sessions alone (there are none).
func (r *SQLiteAccountRepository) SetFrozen(ctx context.Context, id string, frozen bool, actorID string, now time.Time) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning freeze transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	res, err := tx.ExecContext(ctx,
		"UPDATE accounts SET is_frozen = ?, updated_by = ?, updated_at = ? WHERE id = ?",
		boolToInt(frozen), nullString(actorID), formatTime(now), id)
	if err != nil {
		return 0, fmt.Errorf("updating frozen flag: %w", err)
	}
	if err := requireRow(res, ErrAccountNotFound); err != nil {
		return 0, err
	}

	var revoked int64
	if frozen {
		revoked, err = revokeActive(ctx, tx, id, ReasonFrozenBy(actorID), now)
		if err != nil {
			return 0, fmt.Errorf("revoking sessions: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing freeze: %w", err)
	}
	return revoked, nil
}

// Delete removes an account. Its refresh tokens cascade.
func (r *SQLiteAccountRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM accounts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting account: %w", err)
	}
	return requireRow(res, ErrAccountNotFound)
}

func mapAccountWriteError(op string, err error) error {
	switch {
	case isUniqueViolationOn(err, "accounts.username"):
		return ErrUsernameTaken
	case isUniqueViolationOn(err, "accounts.email"):
		return ErrEmailTaken
	case isForeignKeyViolation(err):
		return ErrRoleNotFound
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func scanAccount(s scanner) (*Account, error) {
	var a Account
	var isFrozen int
	var createdAt string
	var roleCode, roleName, lastLogin, pwChanged, updatedBy, updatedAt sql.NullString

	err := s.Scan(&a.ID, &a.Username, &a.Email, &a.FirstName, &a.LastName, &a.PasswordHash,
		&a.RoleID, &roleCode, &roleName, &isFrozen, &lastLogin, &pwChanged,
		&a.CreatedBy, &createdAt, &updatedBy, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("scanning account: %w", err)
	}

	a.RoleCode = RoleCode(roleCode.String)
	a.RoleName = roleName.String
	a.IsFrozen = isFrozen != 0
	a.LastLoginAt = parseNullTime(lastLogin)
	a.PasswordChangedAt = parseNullTime(pwChanged)
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedBy = updatedBy.String
	a.UpdatedAt = parseNullTime(updatedAt)

	return &a, nil
}
