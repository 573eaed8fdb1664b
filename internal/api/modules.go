package api

import "net/http"

// handleAccessibleModules returns the navigation tree for the caller's role.
func (s *Server) handleAccessibleModules(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	tree, err := s.evaluator.AccessibleModuleTree(r.Context(), claims.Role)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, tree, "modules retrieved")
}

// handleModulesWithPermissions returns visible modules with their capability forests.
func (s *Server) handleModulesWithPermissions(w http.ResponseWriter, r *http.Request) {
	modules, err := s.evaluator.ModuleCapabilityTree(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, modules, "modules with permissions retrieved")
}
