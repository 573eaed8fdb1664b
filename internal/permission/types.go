package permission

import (
	"time"

	"github.com/Akash1430/POCPortal/internal/auth"
)

// Module is a navigation module. ParentID forms a forest.
type Module struct {
	ID           int64      `json:"id"`
	Name         string     `json:"module_name"`
	RefCode      string     `json:"ref_code"`
	ParentID     *int64     `json:"parent_id"`
	SortOrder    int        `json:"sort_order"`
	LogoName     string     `json:"logo_name,omitempty"`
	RedirectPage string     `json:"redirect_page,omitempty"`
	IsVisible    bool       `json:"is_visible"`
	Description  string     `json:"description,omitempty"`
	CreatedBy    string     `json:"created_by"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedBy    string     `json:"updated_by,omitempty"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

// Capability is a grantable permission owned by a module.
type Capability struct {
	ID          int64      `json:"id"`
	ModuleID    int64      `json:"module_id"`
	Name        string     `json:"name"`
	RefCode     string     `json:"ref_code"`
	ParentID    *int64     `json:"parent_id"`
	IsVisible   bool       `json:"is_visible"`
	Description string     `json:"description,omitempty"`
	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedBy   string     `json:"updated_by,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// CapabilityNode is a capability rendered into a tree.
type CapabilityNode struct {
	ID            int64             `json:"id"`
	ModuleID      int64             `json:"module_id"`
	ModuleName    string            `json:"module_name,omitempty"`
	Name          string            `json:"name"`
	ParentID      *int64            `json:"parent_id"`
	RefCode       string            `json:"ref_code"`
	Description   string            `json:"description,omitempty"`
	IsVisible     bool              `json:"is_visible"`
	HasPermission bool              `json:"has_permission"`
	Children      []*CapabilityNode `json:"children"`
}

// ModuleNode is a module rendered into the navigation tree.
type ModuleNode struct {
	Module
	Children []*ModuleNode `json:"sub_modules"`
}

// ModuleCapabilities is a module with its capability forest.
type ModuleCapabilities struct {
	ID           int64             `json:"id"`
	Name         string            `json:"module_name"`
	RefCode      string            `json:"ref_code"`
	Capabilities []*CapabilityNode `json:"capabilities"`
}

// RolePermissions is a role with the tree of capabilities it holds.
type RolePermissions struct {
	auth.Role
	Permissions []*CapabilityNode `json:"permissions"`
}

// GrantUpdate is the outcome of replacing a role's grants.
type GrantUpdate struct {
	RoleID         int64    `json:"role_id"`
	RoleName       string   `json:"role_name"`
	CapabilityRefs []string `json:"capability_refs"`
}

// RoleInput carries the editable fields of a role.
type RoleInput struct {
	Name        string        `json:"role_name"`
	RefCode     auth.RoleCode `json:"ref_code"`
	Description string        `json:"description"`
}
