package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// RefreshTokenTTL is the fixed lifetime of a refresh credential.
const RefreshTokenTTL = 7 * 24 * time.Hour

// TokenService issues, rotates and revokes credential pairs.
type TokenService struct {
	tokens   TokenRepository
	accounts AccountRepository
	signer   *Signer
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
}

// NewTokenService creates a TokenService.
func NewTokenService(tokens TokenRepository, accounts AccountRepository, signer *Signer, opts ...Option) *TokenService {
	o := buildOptions(opts)
	return &TokenService{
		tokens:   tokens,
		accounts: accounts,
		signer:   signer,
		observer: o.observer,
		logger:   o.logger,
		now:      o.now,
	}
}

// Issue mints and stores a refresh credential for the account.
// The raw value is returned once and never stored.
func (s *TokenService) Issue(ctx context.Context, account *Account) (string, time.Time, error) {
	raw, token, err := s.newRefreshToken(account)
	if err != nil {
		return "", time.Time{}, err
	}
	if err := s.tokens.Create(ctx, token); err != nil {
		return "", time.Time{}, err
	}
	return raw, token.ExpiresAt, nil
}

// IssuePair mints an access credential and a refresh credential.
func (s *TokenService) IssuePair(ctx context.Context, account *Account) (*TokenPair, error) {
	access, accessExp, err := s.signer.Issue(account)
	if err != nil {
		return nil, err
	}
	raw, refreshExp, err := s.Issue(ctx, account)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:           access,
		AccessTokenExpiresAt:  accessExp,
		RefreshToken:          raw,
		RefreshTokenExpiresAt: refreshExp,
		Account:               account,
	}, nil
}

// Refresh redeems a refresh credential for a new pair. The presented token
// is revoked with reason "rotated" and linked to its successor; a token can
// be redeemed at most once even under concurrent requests.
func (s *TokenService) Refresh(ctx context.Context, raw string) (*TokenPair, error) {
	pair, accountID, err := s.refresh(ctx, raw)
	if err != nil {
		s.emit(ctx, Event{Type: EventRefreshRejected, Outcome: OutcomeFailure, AccountID: accountID, Reason: Kind(err)})
		return nil, err
	}
	s.emit(ctx, Event{Type: EventTokenRefreshed, Outcome: OutcomeSuccess, AccountID: accountID, RoleCode: pair.Account.RoleCode})
	return pair, nil
}

func (s *TokenService) refresh(ctx context.Context, raw string) (*TokenPair, string, error) {
	now := s.now()

	current, err := s.tokens.GetByTokenHash(ctx, HashToken(raw))
	if errors.Is(err, ErrTokenNotFound) {
		return nil, "", ErrTokenInactive
	}
	if err != nil {
		return nil, "", err
	}
	if !current.Active(now) {
		return nil, current.AccountID, ErrTokenInactive
	}

	account, err := s.accounts.GetByID(ctx, current.AccountID)
	if errors.Is(err, ErrAccountNotFound) {
		return nil, current.AccountID, ErrAccountUnavailable
	}
	if err != nil {
		return nil, current.AccountID, err
	}
	if account.IsFrozen {
		return nil, account.ID, ErrAccountUnavailable
	}
	if account.RoleCode == "" {
		return nil, account.ID, ErrRoleMissing
	}

	access, accessExp, err := s.signer.Issue(account)
	if err != nil {
		return nil, account.ID, err
	}

	nextRaw, successor, err := s.newRefreshToken(account)
	if err != nil {
		return nil, account.ID, err
	}
	if err := s.tokens.Rotate(ctx, current.ID, successor, now); err != nil {
		return nil, account.ID, err
	}

	return &TokenPair{
		AccessToken:           access,
		AccessTokenExpiresAt:  accessExp,
		RefreshToken:          nextRaw,
		RefreshTokenExpiresAt: successor.ExpiresAt,
		Account:               account,
	}, account.ID, nil
}

// Revoke revokes one refresh credential. An empty reason records
// "Revoked by request". Revoking a token that is already revoked or
// expired returns ErrTokenAlreadyInactive and changes nothing.
func (s *TokenService) Revoke(ctx context.Context, raw, reason, actorID string) error {
	token, err := s.tokens.GetByTokenHash(ctx, HashToken(raw))
	if err != nil {
		return err
	}
	if !token.Active(s.now()) {
		return ErrTokenAlreadyInactive
	}
	if reason == "" {
		reason = ReasonRevokedByUser
	}
	if err := s.tokens.Revoke(ctx, token.ID, reason, s.now()); err != nil {
		return err
	}

	s.emit(ctx, Event{Type: EventTokenRevoked, Outcome: OutcomeSuccess, AccountID: token.AccountID,
		ActorID: actorID, EntityID: token.ID, Count: 1, Reason: reason})
	return nil
}

// RevokeAll revokes every active refresh credential of the account and
// returns the count.
func (s *TokenService) RevokeAll(ctx context.Context, accountID, reason, actorID string) (int64, error) {
	if _, err := s.accounts.GetByID(ctx, accountID); err != nil {
		return 0, err
	}
	if reason == "" {
		reason = ReasonRevokedByUser
	}
	n, err := s.tokens.RevokeAllForAccount(ctx, accountID, reason, s.now())
	if err != nil {
		return 0, err
	}

	s.emit(ctx, Event{Type: EventTokensRevoked, Outcome: OutcomeSuccess, AccountID: accountID,
		ActorID: actorID, Count: n, Reason: reason})
	return n, nil
}

// Logout revokes the presented refresh credential if it is still active.
// It succeeds whether or not there was anything to revoke.
func (s *TokenService) Logout(ctx context.Context, raw string) error {
	if raw == "" {
		return nil
	}
	token, err := s.tokens.GetByTokenHash(ctx, HashToken(raw))
	if errors.Is(err, ErrTokenNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !token.Active(s.now()) {
		return nil
	}

	err = s.tokens.Revoke(ctx, token.ID, ReasonLogout, s.now())
	if err != nil && !errors.Is(err, ErrTokenAlreadyInactive) {
		return err
	}

	s.emit(ctx, Event{Type: EventLogout, Outcome: OutcomeSuccess, AccountID: token.AccountID, EntityID: token.ID})
	return nil
}

// Verify checks an access credential without touching storage.
func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	return s.signer.Parse(tokenString)
}

// ActiveSessions lists the account's redeemable refresh credentials.
func (s *TokenService) ActiveSessions(ctx context.Context, accountID string) ([]RefreshToken, error) {
	if _, err := s.accounts.GetByID(ctx, accountID); err != nil {
		return nil, err
	}
	return s.tokens.ListActiveByAccount(ctx, accountID, s.now())
}

// Purge deletes refresh credentials that expired before cutoff.
func (s *TokenService) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := s.tokens.DeleteExpiredBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	s.logger.Info("purged expired refresh tokens", "count", n, "cutoff", cutoff.UTC().Format(time.RFC3339))
	return n, nil
}

func (s *TokenService) newRefreshToken(account *Account) (string, *RefreshToken, error) {
	raw, err := GenerateRefreshToken()
	if err != nil {
		return "", nil, fmt.Errorf("issuing refresh token: %w", err)
	}
	now := s.now()
	return raw, &RefreshToken{
		AccountID:  account.ID,
		TokenHash:  HashToken(raw),
		ExpiresAt:  now.Add(RefreshTokenTTL),
		CreatedBy:  account.ID,
		CreatedAt:  now,
		credential: account.PasswordHash,
	}, nil
}

func (s *TokenService) emit(ctx context.Context, ev Event) {
	if ev.At.IsZero() {
		ev.At = s.now()
	}
	s.observer.OnSecurityEvent(ctx, ev)
}
