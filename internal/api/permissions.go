package api

import (
	"net/http"
	"strings"

	"github.com/Akash1430/POCPortal/internal/auth"
)

type myPermissionsResponse struct {
	Role        auth.RoleCode `json:"role"`
	Permissions []string      `json:"permissions"`
}

type checkPermissionRequest struct {
	Permission string `json:"permission"`
}

type checkPermissionResponse struct {
	Permission    string `json:"permission"`
	HasPermission bool   `json:"has_permission"`
}

// handleMyPermissions lists the capability codes granted to the caller's role.
func (s *Server) handleMyPermissions(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	perms, err := s.evaluator.CurrentPermissions(r.Context(), claims.Role)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, myPermissionsResponse{Role: claims.Role, Permissions: perms}, "permissions retrieved")
}

// handleCheckPermission answers whether the caller's role holds one capability.
func (s *Server) handleCheckPermission(w http.ResponseWriter, r *http.Request) {
	var req checkPermissionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Permission = strings.TrimSpace(req.Permission)
	if req.Permission == "" {
		writeBadRequest(w, "permission is required")
		return
	}

	claims := claimsFromContext(r.Context())
	writeOK(w, http.StatusOK, checkPermissionResponse{
		Permission:    req.Permission,
		HasPermission: s.evaluator.HasPermission(r.Context(), claims.Role, req.Permission),
	}, "permission checked")
}
