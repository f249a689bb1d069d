// Package rbac maps terminal roles onto the capabilities checked by handlers and views.
package rbac

import (
	"sort"
	"strings"
)

// Role is a staff access tier.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleCashier Role = "cashier"
)

// Capability is a discrete permission checked in handlers and views.
type Capability string

const (
	CapDashboardView   Capability = "dashboard.view"
	CapCheckout        Capability = "pos.checkout"
	CapReceiptReprint  Capability = "pos.receipt.reprint"
	CapDrawerOperate   Capability = "pos.drawer"
	CapInventoryView   Capability = "inventory.view"
	CapInventoryAdjust Capability = "inventory.adjust"
	CapLowStockAlerts  Capability = "inventory.lowstock"
	CapMetricsView     Capability = "system.metrics"
)

// capabilityRoles maps each capability to the roles permitted to use it.
var capabilityRoles = map[Capability]Roles{
	CapDashboardView:   {RoleAdmin, RoleManager, RoleCashier},
	CapCheckout:        {RoleAdmin, RoleManager, RoleCashier},
	CapReceiptReprint:  {RoleAdmin, RoleManager, RoleCashier},
	CapDrawerOperate:   {RoleAdmin, RoleManager, RoleCashier},
	CapInventoryView:   {RoleAdmin, RoleManager, RoleCashier},
	CapInventoryAdjust: {RoleAdmin, RoleManager},
	CapLowStockAlerts:  {RoleAdmin, RoleManager},
	CapMetricsView:     {RoleAdmin},
}

// capabilityActions phrases each capability as what the operator tried to do.
var capabilityActions = map[Capability]string{
	CapDashboardView:   "view the dashboard",
	CapCheckout:        "ring up sales",
	CapReceiptReprint:  "reprint receipts",
	CapDrawerOperate:   "operate the cash drawer",
	CapInventoryView:   "view inventory",
	CapInventoryAdjust: "adjust stock",
	CapLowStockAlerts:  "view low-stock alerts",
	CapMetricsView:     "view terminal metrics",
}

// DeniedMessage is the notice shown when userRoles lack capability.
func DeniedMessage(userRoles []string, capability Capability) string {
	action, ok := capabilityActions[capability]
	if !ok {
		action = "do that"
	}
	role := PrimaryRole(userRoles)
	if role == "" {
		return "Your account is not allowed to " + action + "."
	}
	return "The " + string(role) + " role is not allowed to " + action + "."
}

// Roles is a set of roles.
type Roles []Role

// Has returns true if role is in the set.
func (rs Roles) Has(role Role) bool {
	for _, r := range rs {
		if r == role {
			return true
		}
	}
	return false
}

// Intersects returns true if any role in candidate is also in the set.
func (rs Roles) Intersects(candidate Roles) bool {
	for _, role := range candidate {
		if rs.Has(role) {
			return true
		}
	}
	return false
}

// NormaliseRoles converts raw role strings into canonical lower-case roles, dropping duplicates.
func NormaliseRoles(raw []string) Roles {
	if len(raw) == 0 {
		return nil
	}
	seen := make(map[Role]struct{}, len(raw))
	roles := make(Roles, 0, len(raw))
	for _, val := range raw {
		role := Role(strings.ToLower(strings.TrimSpace(val)))
		if role == "" {
			continue
		}
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		roles = append(roles, role)
	}
	return roles
}

// RolesForCapability returns the roles able to use capability.
func RolesForCapability(capability Capability) Roles {
	return capabilityRoles[capability]
}

// HasRole reports whether userRoles include required. Admins satisfy every check.
func HasRole(userRoles []string, required Role) bool {
	roles := NormaliseRoles(userRoles)
	if roles.Has(RoleAdmin) {
		return true
	}
	return roles.Has(required)
}

// HasAnyRole reports whether userRoles intersect required.
func HasAnyRole(userRoles []string, required Roles) bool {
	roles := NormaliseRoles(userRoles)
	if roles.Has(RoleAdmin) {
		return true
	}
	return required.Intersects(roles)
}

// HasCapability reports whether userRoles grant capability. An empty capability is
// always granted; an undefined one never is.
func HasCapability(userRoles []string, capability Capability) bool {
	if capability == "" {
		return true
	}
	allowed := RolesForCapability(capability)
	if len(allowed) == 0 {
		return false
	}
	roles := NormaliseRoles(userRoles)
	if roles.Has(RoleAdmin) {
		return true
	}
	return allowed.Intersects(roles)
}

// CapabilitiesForRoles lists the capabilities granted to userRoles.
func CapabilitiesForRoles(userRoles []string) map[Capability]bool {
	roles := NormaliseRoles(userRoles)
	caps := make(map[Capability]bool, len(capabilityRoles))
	for capability, allowed := range capabilityRoles {
		if roles.Has(RoleAdmin) || allowed.Intersects(roles) {
			caps[capability] = true
		}
	}
	return caps
}

// PrimaryRole returns the highest role held, used for display.
func PrimaryRole(userRoles []string) Role {
	roles := NormaliseRoles(userRoles)
	for _, candidate := range []Role{RoleAdmin, RoleManager, RoleCashier} {
		if roles.Has(candidate) {
			return candidate
		}
	}
	if len(roles) > 0 {
		sorted := append(Roles(nil), roles...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		return sorted[0]
	}
	return ""
}
