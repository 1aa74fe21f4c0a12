package enum

// ── Order lifecycle (CHECK constrained in DB) ──

const (
	OrderStatusPending   = "pending"
	OrderStatusAccepted  = "accepted"
	OrderStatusCooking   = "cooking"
	OrderStatusCompleted = "completed"
	OrderStatusRejected  = "rejected"
)

const (
	PaymentStatusUnpaid = "unpaid"
	PaymentStatusPaid   = "paid"
)

// ── Roles (CHECK constrained in DB) ──

// RoleUniversalAdmin rows carry a NULL tenant_id and bypass tenant scoping.
const (
	RoleUniversalAdmin = "universal_admin"
	RoleTenantAdmin    = "tenant_admin"
	RoleManager        = "manager"
	RoleChef           = "chef"
	RoleWaiter         = "waiter"
)

// ── Payment modes (configurable per tenant) ──

const (
	PaymentModeUPI  = "upi"
	PaymentModeCash = "cash"
	PaymentModeCard = "card"
)

// StaffRoles are the roles allowed on the kitchen/order dashboards.
var StaffRoles = []string{RoleTenantAdmin, RoleManager, RoleChef, RoleWaiter}

// AdminRoles are the roles allowed to change tenant settings and staff.
var AdminRoles = []string{RoleTenantAdmin, RoleManager}

// ValidOrderStatus reports whether s is a known order status.
func ValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusPending, OrderStatusAccepted, OrderStatusCooking,
		OrderStatusCompleted, OrderStatusRejected:
		return true
	}
	return false
}

// ValidPaymentMode reports whether s is a known payment mode.
func ValidPaymentMode(s string) bool {
	switch s {
	case PaymentModeUPI, PaymentModeCash, PaymentModeCard:
		return true
	}
	return false
}

// ValidStaffRole reports whether s is a role assignable to tenant staff.
func ValidStaffRole(s string) bool {
	switch s {
	case RoleTenantAdmin, RoleManager, RoleChef, RoleWaiter:
		return true
	}
	return false
}
