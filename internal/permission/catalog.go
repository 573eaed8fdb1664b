package permission

import (
	"context"
	"strings"

	"github.com/Akash1430/POCPortal/internal/auth"
)

var (
	errModuleFieldsRequired     = auth.InvalidInput("module name and reference code are required")
	errCapabilityFieldsRequired = auth.InvalidInput("permission name and reference code are required")
)

// CreateModule adds a navigation module. A parent, if given, must exist.
func (e *Evaluator) CreateModule(ctx context.Context, actorID string, m Module) (*Module, error) {
	m.Name = strings.TrimSpace(m.Name)
	m.RefCode = strings.ToUpper(strings.TrimSpace(m.RefCode))
	if m.Name == "" || m.RefCode == "" {
		return nil, errModuleFieldsRequired
	}
	if m.ParentID != nil {
		if _, err := e.catalog.GetModule(ctx, *m.ParentID); err != nil {
			return nil, err
		}
	}

	m.ID = 0
	m.CreatedBy = actorID
	if err := e.catalog.CreateModule(ctx, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// CreateCapability adds a capability to a module. A parent must already
// exist and belong to the same module, so the forest stays acyclic.
func (e *Evaluator) CreateCapability(ctx context.Context, actorID string, c Capability) (*Capability, error) {
	c.Name = strings.TrimSpace(c.Name)
	c.RefCode = strings.ToUpper(strings.TrimSpace(c.RefCode))
	if c.Name == "" || c.RefCode == "" {
		return nil, errCapabilityFieldsRequired
	}
	if _, err := e.catalog.GetModule(ctx, c.ModuleID); err != nil {
		return nil, err
	}
	if c.ParentID != nil {
		parent, err := e.catalog.GetCapability(ctx, *c.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.ModuleID != c.ModuleID {
			return nil, ErrParentOutsideModule
		}
	}

	c.ID = 0
	c.CreatedBy = actorID
	if err := e.catalog.CreateCapability(ctx, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
