package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Akash1430/POCPortal/internal/auth"
)

type freezeRequest struct {
	IsFrozen *bool `json:"is_frozen"`
}

type listUsersResponse struct {
	Users []auth.Account `json:"users"`
	Count int            `json:"count"`
}

type sessionsResponse struct {
	Sessions []auth.RefreshToken `json:"sessions"`
	Count    int                 `json:"count"`
}

// handleListUserAdmins returns every USERADMIN account.
func (s *Server) handleListUserAdmins(w http.ResponseWriter, r *http.Request) {
	users, err := s.accounts.ListAccounts(r.Context(), []auth.RoleCode{auth.RoleUserAdmin})
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, listUsersResponse{Users: users, Count: len(users)}, "users retrieved")
}

// handleGetUser returns one account. SYSADMIN details are restricted.
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	account, err := s.accounts.GetAccount(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, account, "user retrieved")
}

// handleCreateUserAdmin registers a USERADMIN account. Any role in the
// body is ignored.
func (s *Server) handleCreateUserAdmin(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.RoleCode = auth.RoleUserAdmin

	claims := claimsFromContext(r.Context())
	account, err := s.accounts.Register(r.Context(), claims.Subject, req)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, account, "user created")
}

// handleUpdateUser replaces an account's profile and optionally its role.
func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var req auth.ProfileUpdate
	if !decodeJSON(w, r, &req) {
		return
	}

	claims := claimsFromContext(r.Context())
	account, err := s.accounts.UpdateProfile(r.Context(), claims.Subject, chi.URLParam(r, "userId"), req)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, account, "user updated")
}

// handleFreezeUser freezes or unfreezes an account. Freezing revokes
// its sessions.
func (s *Server) handleFreezeUser(w http.ResponseWriter, r *http.Request) {
	var req freezeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.IsFrozen == nil {
		writeBadRequest(w, "is_frozen is required")
		return
	}

	claims := claimsFromContext(r.Context())
	account, err := s.accounts.SetFrozen(r.Context(), claims.Subject, chi.URLParam(r, "userId"), *req.IsFrozen)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, account, "user freeze status updated")
}

// handleDeleteUserAdmin deletes a USERADMIN account.
func (s *Server) handleDeleteUserAdmin(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if err := s.accounts.AdminDelete(r.Context(), claims.Subject, chi.URLParam(r, "userId")); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeOK[any](w, http.StatusOK, nil, "user deleted")
}

// handleUserSessions lists an account's active refresh tokens.
func (s *Server) handleUserSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.tokens.ActiveSessions(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, sessionsResponse{Sessions: sessions, Count: len(sessions)}, "sessions retrieved")
}
