package auth

import "github.com/atlasforge/agentmesh/pkg/models"

// CanView reports whether user may read the given tenant: superadmins see
// everything, admins see tenants they own, viewers see only their
// assigned tenant.
func CanView(user *models.User, tenant *models.Tenant) bool {
	if user == nil || tenant == nil {
		return false
	}
	switch user.Role {
	case models.RoleSuperAdmin:
		return true
	case models.RoleAdmin:
		return tenant.OwnerID == user.ID
	case models.RoleViewer:
		return user.TenantID != nil && *user.TenantID == tenant.ID
	default:
		return false
	}
}

// CanWrite reports whether user may mutate the given tenant. Viewers
// never have write access, regardless of tenant assignment.
func CanWrite(user *models.User, tenant *models.Tenant) bool {
	if user == nil || tenant == nil {
		return false
	}
	switch user.Role {
	case models.RoleSuperAdmin:
		return true
	case models.RoleAdmin:
		return tenant.OwnerID == user.ID
	default:
		return false
	}
}

// IsSuperAdmin reports whether user holds the superadmin role.
func IsSuperAdmin(user *models.User) bool {
	return user != nil && user.Role == models.RoleSuperAdmin
}
