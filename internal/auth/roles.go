package auth

import (
	"github.com/Behnamfe76/ticket-portal/internal/domain"
)

// staffRoles may open the back-office surfaces of the portal.
var staffRoles = []domain.Role{domain.RoleAdmin, domain.RoleHotelOwner, domain.RoleStaff}

// HasAnyRole reports whether user holds one of allowed, either as primary
// role or through a role record. An empty allowed set admits any user.
func HasAnyRole(user *domain.User, allowed ...domain.Role) bool {
	if user == nil {
		return false
	}
	if len(allowed) == 0 {
		return true
	}
	for _, role := range allowed {
		if user.HasRole(role) {
			return true
		}
	}
	return false
}

// IsStaff reports whether user holds any back-office role.
func IsStaff(user *domain.User) bool {
	return HasAnyRole(user, staffRoles...)
}
