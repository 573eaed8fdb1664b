package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Akash1430/POCPortal/internal/permission"
)

type updateRolePermissionsRequest struct {
	CapabilityIDs *[]int64 `json:"capability_ids"`
}

// roleIDParam parses {roleId}, writing a 400 when it is not a positive integer.
func roleIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "roleId"), 10, 64)
	if err != nil || id <= 0 {
		writeBadRequest(w, "role id must be a positive integer")
		return 0, false
	}
	return id, true
}

// handleRolesWithPermissions lists visible roles with their granted trees.
func (s *Server) handleRolesWithPermissions(w http.ResponseWriter, r *http.Request) {
	roles, err := s.evaluator.RolesWithPermissions(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, roles, "roles retrieved")
}

// handleRolePermissions returns one role with its granted tree.
func (s *Server) handleRolePermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := roleIDParam(w, r)
	if !ok {
		return
	}
	role, err := s.evaluator.RoleWithPermissions(r.Context(), id)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, role, "role permissions retrieved")
}

// handleAllPermissions returns the full visible capability forest.
func (s *Server) handleAllPermissions(w http.ResponseWriter, r *http.Request) {
	tree, err := s.evaluator.AllPermissions(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, tree, "permissions retrieved")
}

// handleUpdateRolePermissions replaces a role's grant set. An empty list
// is a valid request that removes every grant; a missing list is not.
func (s *Server) handleUpdateRolePermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := roleIDParam(w, r)
	if !ok {
		return
	}
	var req updateRolePermissionsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.CapabilityIDs == nil {
		writeBadRequest(w, "capability_ids is required")
		return
	}

	claims := claimsFromContext(r.Context())
	update, err := s.evaluator.UpdateRolePermissions(r.Context(), claims.Subject, id, *req.CapabilityIDs)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, update, "role permissions updated")
}

// handleCreateRole creates a custom role.
func (s *Server) handleCreateRole(w http.ResponseWriter, r *http.Request) {
	var req permission.RoleInput
	if !decodeJSON(w, r, &req) {
		return
	}

	claims := claimsFromContext(r.Context())
	role, err := s.evaluator.CreateRole(r.Context(), claims.Subject, req)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, role, "role created")
}

// handleUpdateRole renames or re-describes a role.
func (s *Server) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := roleIDParam(w, r)
	if !ok {
		return
	}
	var req permission.RoleInput
	if !decodeJSON(w, r, &req) {
		return
	}

	claims := claimsFromContext(r.Context())
	role, err := s.evaluator.UpdateRole(r.Context(), claims.Subject, id, req)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, role, "role updated")
}

// handleDeleteRole deletes an unassigned custom role.
func (s *Server) handleDeleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := roleIDParam(w, r)
	if !ok {
		return
	}

	claims := claimsFromContext(r.Context())
	if err := s.evaluator.DeleteRole(r.Context(), claims.Subject, id); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeOK[any](w, http.StatusOK, nil, "role deleted")
}
