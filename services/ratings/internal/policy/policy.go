// Package policy holds every authorization decision of the ratings service.
// Handlers and services call these functions instead of comparing roles inline.
package policy

import (
	"github.com/example/store-rating/services/ratings/internal/domain"
)

// CanWrite reports whether p may update or delete s.
func CanWrite(p domain.Principal, s domain.Store) bool {
	switch p.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleStoreOwner:
		return s.OwnerID != nil && *s.OwnerID == p.ID
	default:
		return false
	}
}

// CanReadRatings reports whether p may see the individual ratings of s.
func CanReadRatings(p domain.Principal, s domain.Store) bool {
	return CanWrite(p, s)
}

// CanCreateStore reports whether p may create a store it will own.
func CanCreateStore(p domain.Principal) bool {
	return p.Role == domain.RoleAdmin || p.Role == domain.RoleStoreOwner
}

// CanAssignOwner reports whether p may choose a store's owner.
func CanAssignOwner(p domain.Principal) bool {
	return p.Role == domain.RoleAdmin
}

// CanRate reports whether p may submit or update its own rating.
func CanRate(p domain.Principal) bool {
	if p.ID == "" {
		return false
	}
	_, ok := domain.ParseRole(string(p.Role))
	return ok
}

// CanManageUsers reports whether p may list, create, edit or delete any user.
func CanManageUsers(p domain.Principal) bool {
	return p.Role == domain.RoleAdmin
}

// CanEditUser reports whether p may edit target's profile.
func CanEditUser(p domain.Principal, targetID string) bool {
	return p.Role == domain.RoleAdmin || (p.ID != "" && p.ID == targetID)
}

// CanViewOwnerDashboard reports whether p has a store-owner dashboard.
func CanViewOwnerDashboard(p domain.Principal) bool {
	return p.Role == domain.RoleStoreOwner
}

// AuthorizeStoreWrite returns a forbidden error when CanWrite is false.
func AuthorizeStoreWrite(p domain.Principal, s domain.Store) error {
	if !CanWrite(p, s) {
		return domain.Forbidden("STORE_FORBIDDEN", "not authorized to modify this store")
	}
	return nil
}
