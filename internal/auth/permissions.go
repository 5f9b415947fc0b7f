package auth

import (
	"fmt"

	"opspulse/internal/models"
)

// Permission представляет представление или операцию дашборда
type Permission string

// Представления
const (
	ViewAdminDashboard Permission = "admin_dashboard"
	ViewOwnerDashboard Permission = "owner_dashboard"
	ViewAgentMobile    Permission = "agent_mobile"
	ViewOrders         Permission = "orders"
	ViewAgents         Permission = "agents"
	ViewFleet          Permission = "fleet"
	ViewCargo          Permission = "cargo"
	ViewSettings       Permission = "settings"
)

// Операции
const (
	OpApproveOrder   Permission = "approve_order"
	OpCreateOrder    Permission = "create_order"
	OpUpdateStatus   Permission = "update_status"
	OpDelayOrder     Permission = "delay_order"
	OpPushLocation   Permission = "push_location"
	OpApproveUser    Permission = "approve_user"
	OpApproveVehicle Permission = "approve_vehicle"
	OpAssignVehicle  Permission = "assign_vehicle"
	OpCreateVehicle  Permission = "create_vehicle"
)

type permissionSet map[Permission]struct{}

func setOf(perms ...Permission) permissionSet {
	s := make(permissionSet, len(perms))
	for _, p := range perms {
		s[p] = struct{}{}
	}
	return s
}

// Permissions задает права каждой роли. Ожидающие и отклоненные роли прав не имеют.
var Permissions = map[models.Role]permissionSet{
	models.RoleAdmin: setOf(
		ViewAdminDashboard, ViewOrders, ViewAgents, ViewFleet, ViewCargo, ViewSettings,
		OpApproveOrder, OpDelayOrder, OpApproveUser, OpApproveVehicle,
	),
	models.RoleOwner: setOf(
		ViewOwnerDashboard, ViewOrders, ViewAgents, ViewFleet, ViewSettings,
		OpCreateOrder, OpAssignVehicle, OpCreateVehicle,
	),
	models.RoleAgent: setOf(
		ViewAgentMobile,
		OpUpdateStatus, OpPushLocation,
	),
}

// Authorize проверяет, разрешена ли роли операция или представление
func Authorize(role models.Role, p Permission) error {
	if perms, ok := Permissions[role]; ok {
		if _, ok := perms[p]; ok {
			return nil
		}
	}
	return fmt.Errorf("role %q cannot %s: %w", role, p, ErrForbidden)
}

// HomeView возвращает начальное представление роли
func HomeView(role models.Role) (Permission, bool) {
	switch role {
	case models.RoleAdmin:
		return ViewAdminDashboard, true
	case models.RoleOwner:
		return ViewOwnerDashboard, true
	case models.RoleAgent:
		return ViewAgentMobile, true
	}
	return "", false
}
