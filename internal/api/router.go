package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Akash1430/POCPortal/internal/auth"
	"github.com/Akash1430/POCPortal/internal/permission"
)

// healthTimeout bounds the dependency probes behind /health.
const healthTimeout = 3 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	if s.collector != nil {
		r.Use(s.collector.Instrument)
	}
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		if s.collector != nil && s.metCfg.Enabled {
			r.Method(http.MethodGet, s.metricsPath(), s.collector.Handler())
		}

		r.Route("/auth", func(r chi.Router) {
			// Cookie-authenticated: the refresh token is the credential.
			r.With(s.rateLimitMiddleware).Post("/login", s.handleLogin)
			r.Post("/refresh-token", s.handleRefresh)
			r.Post("/logout", s.handleLogout)

			r.Group(func(r chi.Router) {
				r.Use(s.authMiddleware)
				r.Get("/me", s.handleMe)
				r.Post("/revoke-token", s.handleRevokeToken)
				r.Post("/revoke-all-tokens/{userId}", s.handleRevokeAllTokens)
				r.Post("/change-password", s.handleChangePassword)
				r.With(s.requirePermission(permission.CapAdminChangePassword)).
					Post("/admin-change-password/{userId}", s.handleAdminChangePassword)
			})
		})

		// Bearer-authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Route("/features", func(r chi.Router) {
				r.With(s.requirePermission(permission.CapFeaturesReadRoles)).
					Get("/roles-with-permissions", s.handleRolesWithPermissions)
				r.With(s.requirePermission(permission.CapFeaturesReadRoles)).
					Get("/roles/{roleId}/permissions", s.handleRolePermissions)
				r.With(s.requirePermission(permission.CapFeaturesReadPermissions)).
					Get("/permissions", s.handleAllPermissions)

				r.Group(func(r chi.Router) {
					r.Use(s.requirePermission(permission.CapFeaturesUpdateRolePermissions))
					r.Put("/roles/{roleId}/permissions", s.handleUpdateRolePermissions)
					r.Post("/roles", s.handleCreateRole)
					r.Put("/roles/{roleId}", s.handleUpdateRole)
					r.Delete("/roles/{roleId}", s.handleDeleteRole)
				})
			})

			r.Route("/module", func(r chi.Router) {
				r.With(s.requirePermission(permission.CapModuleRead)).
					Get("/modules", s.handleAccessibleModules)
				r.With(s.requireRole(auth.RoleSysAdmin)).
					Get("/modules-with-permissions", s.handleModulesWithPermissions)
			})

			r.Route("/permission", func(r chi.Router) {
				r.Get("/my-permissions", s.handleMyPermissions)
				r.Post("/check", s.handleCheckPermission)
			})

			r.Route("/useradmin/users", func(r chi.Router) {
				r.With(s.requirePermission(permission.CapAdminRead)).Get("/", s.handleListUserAdmins)
				r.With(s.requirePermission(permission.CapAdminCreate)).Post("/", s.handleCreateUserAdmin)

				r.Route("/{userId}", func(r chi.Router) {
					r.With(s.requirePermission(permission.CapAdminRead)).Get("/", s.handleGetUser)
					r.With(s.requirePermission(permission.CapAdminUpdate)).Put("/", s.handleUpdateUser)
					r.With(s.requirePermission(permission.CapAdminUpdate)).Patch("/freeze", s.handleFreezeUser)
					r.With(s.requirePermission(permission.CapAdminDelete)).Delete("/", s.handleDeleteUserAdmin)
					r.With(s.requirePermission(permission.CapAdminRead)).Get("/sessions", s.handleUserSessions)
				})
			})

			r.With(s.requirePermission(permission.CapAdminRead)).Get("/audit-logs", s.handleListAuditLogs)
		})
	})

	return r
}

func (s *Server) metricsPath() string {
	if s.metCfg.Path == "" {
		return "/metrics"
	}
	return s.metCfg.Path
}

// healthReport is the body of GET /health.
type healthReport struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Components map[string]string `json:"components"`
}

// handleHealth reports liveness plus the state of every registered
// dependency. Any failing dependency turns the response into a 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	report := healthReport{Status: "ok", Version: s.version, Components: map[string]string{}}
	for name, hc := range s.health {
		if hc == nil {
			continue
		}
		if err := hc.HealthCheck(ctx); err != nil {
			s.logger.Warn("health check failed", "component", name, "error", err)
			report.Components[name] = "unhealthy"
			report.Status = "degraded"
			continue
		}
		report.Components[name] = "ok"
	}

	status := http.StatusOK
	if report.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, auth.Result[healthReport]{Success: status == http.StatusOK, Message: report.Status, Data: report})
}
