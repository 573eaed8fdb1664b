package permission

// Reference codes of the seeded capabilities that guard the API.
const (
	CapAdminRead           = "ADMIN_READ"
	CapAdminCreate         = "ADMIN_CREATE"
	CapAdminUpdate         = "ADMIN_UPDATE"
	CapAdminDelete         = "ADMIN_DELETE"
	CapAdminChangePassword = "ADMIN_CHANGE_PASSWORD"

	CapFeaturesReadRoles             = "FEATURES_READ_ROLES"
	CapFeaturesReadPermissions       = "FEATURES_READ_PERMISSIONS"
	CapFeaturesUpdateRolePermissions = "FEATURES_UPDATE_ROLE_PERMISSIONS"

	CapModuleRead = "MODULE_READ"
)
