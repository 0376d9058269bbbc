package services

import (
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

const (
	RoleStudent    = "STUDENT"
	RoleCounselor  = "COUNSELOR"
	RoleAccountant = "ACCOUNTANT"
	RoleAdmin      = "ADMIN"
	RoleSuperAdmin = "SUPER_ADMIN"
)

var DefaultMessagingAdminRoles = []string{RoleSuperAdmin, RoleAdmin, RoleCounselor}

// Identity is what the identity gate resolves a request to.
type Identity struct {
	UserID uint   `json:"user_id"`
	Role   string `json:"role"`
}

func (v Identity) IsAuthenticated() bool {
	return v.UserID > 0 && len(v.Role) > 0
}

func IsStudent(role string) bool {
	return role == RoleStudent
}

func IsMessagingAdmin(role string) bool {
	roles := viper.GetStringSlice("messaging.admin_roles")
	if len(roles) == 0 {
		roles = DefaultMessagingAdminRoles
	}
	return lo.Contains(roles, role)
}

// CanManageThread is true for messaging admins and for the user who created the thread.
func CanManageThread(user Identity, createdBy uint) bool {
	return IsMessagingAdmin(user.Role) || user.UserID == createdBy
}

func ensureAuthenticated(user Identity) error {
	if !user.IsAuthenticated() {
		return ErrNotAuthenticated
	}
	return nil
}
