package permission

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/Akash1430/POCPortal/internal/auth"
)

// Evaluator answers authorization questions and renders permission trees.
// It holds no mutable state; every call reads the catalog afresh.
type Evaluator struct {
	catalog  CatalogRepository
	roles    auth.RoleRepository
	observer auth.Observer
	logger   *slog.Logger
	now      func() time.Time
}

// NewEvaluator creates an evaluator over the catalog and role stores.
func NewEvaluator(catalog CatalogRepository, roles auth.RoleRepository, opts ...Option) *Evaluator {
	e := &Evaluator{
		catalog:  catalog,
		roles:    roles,
		observer: discardObserver{},
		logger:   slog.New(slog.DiscardHandler),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HasPermission reports whether the role holds the capability. Any
// failure, including an unknown role, is a denial.
func (e *Evaluator) HasPermission(ctx context.Context, roleCode auth.RoleCode, capabilityRef string) bool {
	if roleCode == "" || capabilityRef == "" {
		return false
	}
	role, err := e.roles.GetByCode(ctx, roleCode)
	if err != nil {
		e.logger.Debug("permission check denied", "role", roleCode, "capability", capabilityRef, "error", err)
		return false
	}
	ok, err := e.catalog.HasGrant(ctx, role.ID, capabilityRef)
	if err != nil {
		e.logger.Warn("permission check failed, denying", "role", roleCode, "capability", capabilityRef, "error", err)
		return false
	}
	return ok
}

// CurrentPermissions returns the reference codes granted to a role.
func (e *Evaluator) CurrentPermissions(ctx context.Context, roleCode auth.RoleCode) ([]string, error) {
	role, err := e.roles.GetByCode(ctx, roleCode)
	if err != nil {
		return nil, err
	}
	ids, err := e.catalog.GrantedCapabilityIDs(ctx, role.ID)
	if err != nil {
		return nil, err
	}
	caps, err := e.catalog.ListCapabilitiesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	refs := make([]string, len(caps))
	for i, c := range caps {
		refs[i] = c.RefCode
	}
	return refs, nil
}

// PermissionTree renders the visible capabilities granted to a role as a
// forest. Every rendered node has HasPermission set.
func (e *Evaluator) PermissionTree(ctx context.Context, roleID int64) ([]*CapabilityNode, error) {
	ids, err := e.catalog.GrantedCapabilityIDs(ctx, roleID)
	if err != nil {
		return nil, err
	}
	granted := make(map[int64]bool, len(ids))
	for _, id := range ids {
		granted[id] = true
	}

	caps, err := e.catalog.ListCapabilitiesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	return e.renderForest(ctx, visibleOnly(caps), granted)
}

// AllPermissions renders the full visible catalog with nothing marked granted.
func (e *Evaluator) AllPermissions(ctx context.Context) ([]*CapabilityNode, error) {
	caps, err := e.catalog.ListCapabilities(ctx)
	if err != nil {
		return nil, err
	}
	return e.renderForest(ctx, visibleOnly(caps), nil)
}

func (e *Evaluator) renderForest(ctx context.Context, caps []Capability, granted map[int64]bool) ([]*CapabilityNode, error) {
	modules, err := e.catalog.ListModules(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(modules))
	for _, m := range modules {
		names[m.ID] = m.Name
	}

	arena := newCapabilityArena(caps)
	return arena.forest(arena.roots, nodeOptions{moduleNames: names, granted: granted}), nil
}

// RoleWithPermissions returns a role and its permission tree.
func (e *Evaluator) RoleWithPermissions(ctx context.Context, roleID int64) (*RolePermissions, error) {
	role, err := e.roles.GetByID(ctx, roleID)
	if err != nil {
		return nil, err
	}
	tree, err := e.PermissionTree(ctx, role.ID)
	if err != nil {
		return nil, err
	}
	return &RolePermissions{Role: *role, Permissions: tree}, nil
}

// RolesWithPermissions returns every visible role with its permission tree.
func (e *Evaluator) RolesWithPermissions(ctx context.Context) ([]RolePermissions, error) {
	roles, err := e.roles.List(ctx, true)
	if err != nil {
		return nil, err
	}
	out := make([]RolePermissions, 0, len(roles))
	for _, role := range roles {
		tree, err := e.PermissionTree(ctx, role.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, RolePermissions{Role: role, Permissions: tree})
	}
	return out, nil
}

// ModuleCapabilityTree lists each visible module with its visible
// capability forest. Modules without capabilities are omitted.
func (e *Evaluator) ModuleCapabilityTree(ctx context.Context) ([]ModuleCapabilities, error) {
	modules, err := e.catalog.ListModules(ctx)
	if err != nil {
		return nil, err
	}
	caps, err := e.catalog.ListCapabilities(ctx)
	if err != nil {
		return nil, err
	}
	arena := newCapabilityArena(visibleOnly(caps))

	out := []ModuleCapabilities{}
	for _, m := range modules {
		if !m.IsVisible {
			continue
		}
		roots := arena.rootsOfModule(m.ID)
		if len(roots) == 0 {
			continue
		}
		out = append(out, ModuleCapabilities{
			ID:           m.ID,
			Name:         m.Name,
			RefCode:      m.RefCode,
			Capabilities: arena.forest(roots, nodeOptions{}),
		})
	}
	return out, nil
}

// AccessibleModuleTree returns the navigation tree of visible modules in
// which the role holds at least one capability.
func (e *Evaluator) AccessibleModuleTree(ctx context.Context, roleCode auth.RoleCode) ([]*ModuleNode, error) {
	role, err := e.roles.GetByCode(ctx, roleCode)
	if err != nil {
		return nil, err
	}

	ids, err := e.catalog.GrantedCapabilityIDs(ctx, role.ID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("role %s has no grants: %w", role.RefCode, ErrNoModulesForRole)
	}

	caps, err := e.catalog.ListCapabilitiesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(caps) == 0 {
		return nil, fmt.Errorf("no capabilities found for role %s: %w", role.RefCode, ErrNoModulesForRole)
	}

	var moduleIDs []int64
	for _, c := range caps {
		if !slices.Contains(moduleIDs, c.ModuleID) {
			moduleIDs = append(moduleIDs, c.ModuleID)
		}
	}

	modules, err := e.catalog.ListModulesByIDs(ctx, moduleIDs)
	if err != nil {
		return nil, err
	}
	modules = slices.DeleteFunc(modules, func(m Module) bool { return !m.IsVisible })
	if len(modules) == 0 {
		return nil, fmt.Errorf("no visible modules for role %s: %w", role.RefCode, ErrNoModulesForRole)
	}

	return buildModuleForest(modules), nil
}

// UpdateRolePermissions replaces every grant of a role with capabilityIDs.
// The top-tier role is refused before anything is written.
func (e *Evaluator) UpdateRolePermissions(ctx context.Context, actorID string, roleID int64, capabilityIDs []int64) (*GrantUpdate, error) {
	role, err := e.roles.GetByID(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if role.RefCode.IsTopTier() {
		return nil, auth.ErrTopTierImmutable
	}

	ids := slices.Clone(capabilityIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	refs, err := e.catalog.ReplaceGrants(ctx, role.ID, ids, actorID, e.now())
	if err != nil {
		return nil, err
	}

	e.observer.OnSecurityEvent(ctx, auth.Event{
		Type:     auth.EventPermissionsUpdated,
		Outcome:  auth.OutcomeSuccess,
		ActorID:  actorID,
		RoleCode: role.RefCode,
		EntityID: strconv.FormatInt(role.ID, 10),
		Count:    int64(len(refs)),
		At:       e.now(),
	})
	return &GrantUpdate{RoleID: role.ID, RoleName: role.Name, CapabilityRefs: refs}, nil
}

func visibleOnly(caps []Capability) []Capability {
	return slices.DeleteFunc(caps, func(c Capability) bool { return !c.IsVisible })
}
