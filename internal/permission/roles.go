package permission

import (
	"context"
	"strconv"
	"strings"

	"github.com/Akash1430/POCPortal/internal/auth"
)

var (
	errRoleNameRequired = auth.InvalidInput("role name is required")
	errRoleCodeRequired = auth.InvalidInput("role reference code is required")
)

// CreateRole adds a visible role with no grants.
func (e *Evaluator) CreateRole(ctx context.Context, actorID string, in RoleInput) (*auth.Role, error) {
	in, err := normalizeRoleInput(in)
	if err != nil {
		return nil, err
	}

	role := &auth.Role{
		Name:        in.Name,
		RefCode:     in.RefCode,
		Description: in.Description,
		IsVisible:   true,
		CreatedBy:   actorID,
	}
	if err := e.roles.Create(ctx, role); err != nil {
		return nil, err
	}

	e.emitRole(ctx, auth.EventRoleCreated, actorID, role)
	return role, nil
}

// UpdateRole renames or re-describes a role. The reference code of the
// well-known tiers cannot change.
func (e *Evaluator) UpdateRole(ctx context.Context, actorID string, roleID int64, in RoleInput) (*auth.Role, error) {
	in, err := normalizeRoleInput(in)
	if err != nil {
		return nil, err
	}

	role, err := e.roles.GetByID(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if role.RefCode.Tier() > 0 && !in.RefCode.Is(role.RefCode) {
		return nil, auth.ErrProtectedRole
	}

	role.Name = in.Name
	role.RefCode = in.RefCode
	role.Description = in.Description
	role.UpdatedBy = actorID
	if err := e.roles.Update(ctx, role); err != nil {
		return nil, err
	}

	e.emitRole(ctx, auth.EventRoleUpdated, actorID, role)
	return role, nil
}

// DeleteRole removes a role and its grants. SYSADMIN and USERADMIN are
// protected, and a role still held by an account cannot be removed.
func (e *Evaluator) DeleteRole(ctx context.Context, actorID string, roleID int64) error {
	role, err := e.roles.GetByID(ctx, roleID)
	if err != nil {
		return err
	}
	if role.RefCode.Tier() > 0 {
		return auth.ErrProtectedRole
	}
	if err := e.roles.Delete(ctx, role.ID); err != nil {
		return err
	}

	e.emitRole(ctx, auth.EventRoleDeleted, actorID, role)
	return nil
}

func (e *Evaluator) emitRole(ctx context.Context, typ auth.EventType, actorID string, role *auth.Role) {
	e.observer.OnSecurityEvent(ctx, auth.Event{
		Type:     typ,
		Outcome:  auth.OutcomeSuccess,
		ActorID:  actorID,
		RoleCode: role.RefCode,
		EntityID: strconv.FormatInt(role.ID, 10),
		At:       e.now(),
	})
}

func normalizeRoleInput(in RoleInput) (RoleInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.RefCode = auth.RoleCode(strings.ToUpper(strings.TrimSpace(string(in.RefCode))))
	in.Description = strings.TrimSpace(in.Description)
	if in.Name == "" {
		return in, errRoleNameRequired
	}
	if in.RefCode == "" {
		return in, errRoleCodeRequired
	}
	return in, nil
}
