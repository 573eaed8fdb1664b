package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Akash1430/POCPortal/internal/auth"
)

// ─── Request/Response Types ────────────────────────────────────────

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// sessionResponse is returned by login and refresh. The refresh token
// itself is only ever set as a cookie.
type sessionResponse struct {
	*auth.TokenPair
	TokenType string `json:"token_type"`
	ExpiresIn int    `json:"expires_in"` // seconds
}

type revokeTokenRequest struct {
	Token  string `json:"token"`
	Reason string `json:"reason,omitempty"`
}

type revokeAllRequest struct {
	Reason string `json:"reason,omitempty"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type adminChangePasswordRequest struct {
	NewPassword string `json:"new_password"`
}

type revokedResponse struct {
	Revoked int64 `json:"revoked"`
}

// ─── Handlers ──────────────────────────────────────────────────────

// handleLogin authenticates a user, returns the access token and sets the
// refresh token cookie.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	pair, err := s.accounts.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeCredentialFailure(w, r, "login", err)
		return
	}

	s.writeSession(w, pair, "login successful")
}

// handleRefresh redeems the refresh cookie for a new pair. The presented
// token is consumed whether or not the caller keeps the response.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	raw := s.refreshTokenFromCookie(r)
	if raw == "" {
		s.logger.Warn("refresh rejected", "cause", "no refresh cookie",
			"request_id", r.Context().Value(ctxKeyRequestID))
		writeUnauthorized(w, credentialFailureMessage)
		return
	}

	pair, err := s.tokens.Refresh(r.Context(), raw)
	if err != nil {
		if statusFor(err) != http.StatusInternalServerError {
			s.clearRefreshCookie(w)
		}
		s.writeCredentialFailure(w, r, "refresh", err)
		return
	}

	s.writeSession(w, pair, "token refreshed")
}

func (s *Server) writeSession(w http.ResponseWriter, pair *auth.TokenPair, message string) {
	s.setRefreshCookie(w, pair.RefreshToken, pair.RefreshTokenExpiresAt)
	writeOK(w, http.StatusOK, sessionResponse{
		TokenPair: pair,
		TokenType: "Bearer",
		ExpiresIn: int(time.Until(pair.AccessTokenExpiresAt).Seconds()),
	}, message)
}

// handleLogout revokes the refresh cookie's token, if any, and clears the
// cookie. It succeeds without authentication.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.tokens.Logout(r.Context(), s.refreshTokenFromCookie(r)); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.clearRefreshCookie(w)
	writeOK[any](w, http.StatusOK, nil, "logged out successfully")
}

// handleMe returns the caller's own account.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	account, err := s.accounts.CurrentAccount(r.Context(), claims.Subject)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, account, "current user retrieved")
}

// handleRevokeToken revokes one refresh token given in the body. An
// already revoked or expired token answers 409 and nothing changes.
func (s *Server) handleRevokeToken(w http.ResponseWriter, r *http.Request) {
	var req revokeTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		writeBadRequest(w, "token is required")
		return
	}

	claims := claimsFromContext(r.Context())
	if err := s.tokens.Revoke(r.Context(), req.Token, req.Reason, claims.Subject); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeOK[any](w, http.StatusOK, nil, "token revoked")
}

// handleRevokeAllTokens revokes every session of {userId}. The body and
// its reason are optional.
func (s *Server) handleRevokeAllTokens(w http.ResponseWriter, r *http.Request) {
	var req revokeAllRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	claims := claimsFromContext(r.Context())
	n, err := s.accounts.RevokeSessions(r.Context(), claims.Subject, chi.URLParam(r, "userId"), req.Reason)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, revokedResponse{Revoked: n}, "tokens revoked")
}

// handleChangePassword changes the caller's password. Every session,
// including this one, is revoked, so the cookie is cleared.
func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	claims := claimsFromContext(r.Context())
	if err := s.accounts.ChangePassword(r.Context(), claims.Subject, req.CurrentPassword, req.NewPassword); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.clearRefreshCookie(w)
	writeOK[any](w, http.StatusOK, nil, "password changed successfully")
}

// handleAdminChangePassword resets another account's password.
func (s *Server) handleAdminChangePassword(w http.ResponseWriter, r *http.Request) {
	var req adminChangePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	claims := claimsFromContext(r.Context())
	err := s.accounts.AdminChangePassword(r.Context(), claims.Subject, chi.URLParam(r, "userId"), req.NewPassword)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeOK[any](w, http.StatusOK, nil, "password reset successfully")
}

// decodeOptionalJSON decodes a body that may be absent.
func decodeOptionalJSON(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
