package permission

import "github.com/Akash1430/POCPortal/internal/auth"

// Catalog errors share the auth failure kinds so the transport maps them
// the same way.
var (
	ErrModuleNotFound      = auth.NewError(auth.ErrNotFound, "module not found")
	ErrCapabilityNotFound  = auth.NewError(auth.ErrNotFound, "one or more permissions not found")
	ErrNoModulesForRole    = auth.NewError(auth.ErrNotFound, "no modules found for the specified role")
	ErrModuleExists        = auth.NewError(auth.ErrConflict, "module reference code already exists")
	ErrCapabilityExists    = auth.NewError(auth.ErrConflict, "permission reference code already exists")
	ErrParentOutsideModule = auth.InvalidInput("parent permission must belong to the same module")
)
