package auth

import (
	"slices"
	"strings"
)

// Role is a staff or system role carried in the token "role" claim.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleDeveloper   Role = "dev"
	RoleManager     Role = "manager"
	RoleOperator    Role = "operator"
	RoleShipping    Role = "shipping"
	RoleSchool      Role = "school"
	RoleVisitor     Role = "visitor"
	RoleIntegration Role = "integration"
	RoleService     Role = "service"
)

// Capability is a single permission checked by handlers.
type Capability string

const (
	CapOrdersView           Capability = "orders.view"
	CapOrdersViewOwn        Capability = "orders.view_own"
	CapOrdersEdit           Capability = "orders.edit"
	CapOrdersDelete         Capability = "orders.delete"
	CapOrdersChangeStatus   Capability = "orders.change_status"
	CapOrdersDownloadLabels Capability = "orders.download_labels"
	CapWebhooksManage       Capability = "webhooks.manage"
	CapIntegrationsManage   Capability = "integrations.manage"
	CapAPIAccess            Capability = "api.access"
)

var roleCapabilities = map[Role][]Capability{
	RoleAdmin: {
		CapOrdersView, CapOrdersEdit, CapOrdersDelete, CapOrdersChangeStatus,
		CapOrdersDownloadLabels, CapWebhooksManage, CapIntegrationsManage, CapAPIAccess,
	},
	RoleDeveloper: {
		CapOrdersView, CapOrdersEdit, CapOrdersDelete, CapOrdersChangeStatus,
		CapOrdersDownloadLabels, CapWebhooksManage, CapIntegrationsManage, CapAPIAccess,
	},
	RoleManager:     {CapOrdersView, CapOrdersEdit, CapOrdersChangeStatus, CapOrdersDownloadLabels},
	RoleOperator:    {CapOrdersView, CapOrdersEdit, CapOrdersChangeStatus},
	RoleShipping:    {CapOrdersView, CapOrdersChangeStatus, CapOrdersDownloadLabels},
	RoleSchool:      {CapOrdersViewOwn},
	RoleVisitor:     {CapOrdersViewOwn},
	RoleIntegration: {CapAPIAccess},
	RoleService:     {CapOrdersView, CapOrdersChangeStatus},
}

// System roles are assigned by API-key and OIDC middleware, never taken from token claims.
var systemRoles = map[Role]bool{RoleIntegration: true, RoleService: true}

// Legacy role names still present on older accounts.
var roleAliases = map[string]Role{
	"gerente":   RoleManager,
	"usuario":   RoleOperator,
	"expedicao": RoleShipping,
	"escola":    RoleSchool,
	"visitante": RoleVisitor,
	"developer": RoleDeveloper,
}

// ParseRole normalises a claim value into a known Role.
func ParseRole(raw string) (Role, bool) {
	name := strings.ToLower(strings.TrimSpace(raw))
	if alias, ok := roleAliases[name]; ok {
		return alias, true
	}
	role := Role(name)
	if systemRoles[role] {
		return "", false
	}
	if _, ok := roleCapabilities[role]; !ok {
		return "", false
	}
	return role, true
}

// Capabilities returns the union of capabilities granted to the roles.
func Capabilities(roles ...Role) []Capability {
	var out []Capability
	for _, role := range roles {
		for _, capability := range roleCapabilities[role] {
			if !slices.Contains(out, capability) {
				out = append(out, capability)
			}
		}
	}
	return out
}
