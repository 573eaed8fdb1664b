package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Revocation reasons recorded on refresh tokens.
const (
	ReasonRotated         = "rotated"
	ReasonLogout          = "Logged out by user"
	ReasonRevokedByUser   = "Revoked by request"
	ReasonPasswordChanged = "Password changed - security measure"
)

// ReasonFrozenBy is the revocation reason recorded when an account is frozen.
func ReasonFrozenBy(actorID string) string {
	return "User account frozen by " + actorID
}

// ReasonPasswordResetBy is the revocation reason recorded on an admin password change.
func ReasonPasswordResetBy(actorID string) string {
	return "Password changed by admin: " + actorID
}

// TokenRepository defines the interface for refresh token persistence.
type TokenRepository interface {
	Create(ctx context.Context, token *RefreshToken) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*RefreshToken, error)
	Rotate(ctx context.Context, oldID string, successor *RefreshToken, now time.Time) error
	Revoke(ctx context.Context, id, reason string, now time.Time) error
	RevokeAllForAccount(ctx context.Context, accountID, reason string, now time.Time) (int64, error)
	ListActiveByAccount(ctx context.Context, accountID string, now time.Time) ([]RefreshToken, error)
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// SQLiteTokenRepository implements TokenRepository using SQLite.
type SQLiteTokenRepository struct {
	db *sql.DB
}

// NewTokenRepository creates a new SQLite-backed token repository.
func NewTokenRepository(db *sql.DB) *SQLiteTokenRepository {
	return &SQLiteTokenRepository{db: db}
}

const tokenColumns = `id, account_id, token_hash, expires_at, revoked, revoked_at, revoked_reason,
	replaced_by, created_by, created_at`

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Create inserts a new refresh token. The ID is generated if empty.
// The insert is refused with ErrAccountUnavailable when the owning account
// is missing or frozen at write time.
func (r *SQLiteTokenRepository) Create(ctx context.Context, token *RefreshToken) error {
	if err := insertToken(ctx, r.db, token); err != nil {
		if errors.Is(err, ErrAccountUnavailable) {
			return err
		}
		return fmt.Errorf("creating refresh token: %w", err)
	}
	return nil
}

// insertToken writes the token only while its account is active and, when
// the token carries a credential, still holds that password hash. A freeze
// or password change that commits after the caller's eligibility checks
// therefore cannot leave a live session behind.
func insertToken(ctx context.Context, db execer, token *RefreshToken) error {
	if token.ID == "" {
		token.ID = newID("rt-", 16)
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}
	token.CreatedAt = parseTime(formatTime(token.CreatedAt))

	res, err := db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (id, account_id, token_hash, expires_at, revoked, created_by, created_at)
		 SELECT ?, ?, ?, ?, 0, ?, ?
		 WHERE EXISTS (
		     SELECT 1 FROM accounts
		     WHERE id = ? AND is_frozen = 0 AND (? = '' OR password_hash = ?)
		 )`,
		token.ID, token.AccountID, token.TokenHash,
		formatTime(token.ExpiresAt), token.CreatedBy, formatTime(token.CreatedAt),
		token.AccountID, token.credential, token.credential,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking inserted token: %w", err)
	}
	if n == 0 {
		return ErrAccountUnavailable
	}
	return nil
}

// GetByID retrieves a refresh token by its ID, e.g. to follow a replaced_by link.
func (r *SQLiteTokenRepository) GetByID(ctx context.Context, id string) (*RefreshToken, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+tokenColumns+" FROM refresh_tokens WHERE id = ?", id)
	t, err := scanToken(row)
	if err != nil {
		return nil, fmt.Errorf("getting refresh token: %w", err)
	}
	return t, nil
}

// GetByTokenHash retrieves a refresh token by its SHA-256 hash.
func (r *SQLiteTokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*RefreshToken, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+tokenColumns+" FROM refresh_tokens WHERE token_hash = ?", tokenHash)
	t, err := scanToken(row)
	if err != nil {
		return nil, fmt.Errorf("getting refresh token by hash: %w", err)
	}
	return t, nil
}

// Rotate inserts the successor and revokes the consumed token in one
// transaction. The revoke is conditional on the token still being active;
// if another redemption won the race, nothing is written and
// ErrTokenInactive is returned.
func (r *SQLiteTokenRepository) Rotate(ctx context.Context, oldID string, successor *RefreshToken, now time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning rotation transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	if err := insertToken(ctx, tx, successor); err != nil {
		if errors.Is(err, ErrAccountUnavailable) {
			return err
		}
		return fmt.Errorf("inserting successor token: %w", err)
	}

	ts := formatTime(now)
	res, err := tx.ExecContext(ctx,
		`UPDATE refresh_tokens
		 SET revoked = 1, revoked_at = ?, revoked_reason = ?, replaced_by = ?
		 WHERE id = ? AND revoked = 0 AND expires_at > ?`,
		ts, ReasonRotated, successor.ID, oldID, ts)
	if err != nil {
		return fmt.Errorf("revoking rotated token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rotated token: %w", err)
	}
	if n == 0 {
		return ErrTokenInactive
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing rotation: %w", err)
	}
	return nil
}

// Revoke marks a single active token as revoked. A token that is already
// revoked or expired is left untouched and ErrTokenAlreadyInactive is returned.
func (r *SQLiteTokenRepository) Revoke(ctx context.Context, id, reason string, now time.Time) error {
	ts := formatTime(now)
	res, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = 1, revoked_at = ?, revoked_reason = ?
		 WHERE id = ? AND revoked = 0 AND expires_at > ?`,
		ts, reason, id, ts)
	if err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking revoked token: %w", err)
	}
	if n == 0 {
		return ErrTokenAlreadyInactive
	}
	return nil
}

// RevokeAllForAccount revokes every active token of an account and returns
// how many were revoked.
func (r *SQLiteTokenRepository) RevokeAllForAccount(ctx context.Context, accountID, reason string, now time.Time) (int64, error) {
	n, err := revokeActive(ctx, r.db, accountID, reason, now)
	if err != nil {
		return 0, fmt.Errorf("revoking all tokens for account: %w", err)
	}
	return n, nil
}

// revokeActive is shared with account mutations that must revoke sessions
// inside their own transaction.
func revokeActive(ctx context.Context, db execer, accountID, reason string, now time.Time) (int64, error) {
	ts := formatTime(now)
	res, err := db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = 1, revoked_at = ?, revoked_reason = ?
		 WHERE account_id = ? AND revoked = 0 AND expires_at > ?`,
		ts, reason, accountID, ts)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListActiveByAccount returns the account's redeemable tokens, newest first.
func (r *SQLiteTokenRepository) ListActiveByAccount(ctx context.Context, accountID string, now time.Time) ([]RefreshToken, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+tokenColumns+` FROM refresh_tokens
		 WHERE account_id = ? AND revoked = 0 AND expires_at > ?
		 ORDER BY created_at DESC`,
		accountID, formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("listing active tokens: %w", err)
	}
	defer rows.Close()

	tokens := []RefreshToken{}
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tokens: %w", err)
	}
	return tokens, nil
}

// DeleteExpiredBefore purges tokens whose expiry is older than cutoff.
// Successor links pointing at purged rows are cleared by the foreign key.
func (r *SQLiteTokenRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE expires_at < ?", formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("deleting expired tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted tokens: %w", err)
	}
	return n, nil
}

func scanToken(s scanner) (*RefreshToken, error) {
	var t RefreshToken
	var revoked int
	var expiresAt, createdAt string
	var revokedAt, reason, replacedBy sql.NullString

	err := s.Scan(&t.ID, &t.AccountID, &t.TokenHash, &expiresAt, &revoked, &revokedAt,
		&reason, &replacedBy, &t.CreatedBy, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("scanning refresh token: %w", err)
	}

	t.Revoked = revoked != 0
	t.RevokedAt = parseNullTime(revokedAt)
	t.RevokedReason = reason.String
	t.ReplacedBy = replacedBy.String
	t.ExpiresAt = parseTime(expiresAt)
	t.CreatedAt = parseTime(createdAt)

	return &t, nil
}
