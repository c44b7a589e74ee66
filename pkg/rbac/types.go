package rbac

import (
	"sort"
	"strings"
)

// Resource represents a resource type in the system
type Resource string

const (
	ResourceCustomers   Resource = "customers"
	ResourceWorkOrders  Resource = "work_orders"
	ResourceInvoices    Resource = "invoices"
	ResourceInventory   Resource = "inventory"
	ResourceExpenses    Resource = "expenses"
	ResourceSalaries    Resource = "salaries"
	ResourceTechnicians Resource = "technicians"
	ResourceReports     Resource = "reports"
	ResourceSettings    Resource = "settings"
	ResourceUsers       Resource = "users"
	ResourceDashboard   Resource = "dashboard"
)

// Action represents an action that can be performed on a resource
type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionExport Action = "export"

	// Resource-specific sub-actions
	ActionAssign             Action = "assign"
	ActionSend               Action = "send"
	ActionViewStats          Action = "view_stats"
	ActionViewFinancialStats Action = "view_financial_stats"
	ActionViewWorkOrders     Action = "view_work_orders"
	ActionViewExpenses       Action = "view_expenses"
	ActionViewInventory      Action = "view_inventory"
	ActionViewCustomers      Action = "view_customers"
	ActionViewSalaries       Action = "view_salaries"
	ActionViewTechnicians    Action = "view_technicians"
)

// PermissionKey identifies one checkable capability as "<resource>.<action>".
type PermissionKey string

// Permission is the structured form of a PermissionKey.
type Permission struct {
	Resource Resource `json:"resource"`
	Action   Action   `json:"action"`
}

// Key returns the "<resource>.<action>" form of the permission
func (p Permission) Key() PermissionKey {
	return PermissionKey(string(p.Resource) + "." + string(p.Action))
}

func (p Permission) String() string {
	return string(p.Key())
}

// Parse splits a key into resource and action. ok is false when the key has no dot.
func (k PermissionKey) Parse() (Permission, bool) {
	resource, action, found := strings.Cut(string(k), ".")
	if !found || resource == "" || action == "" {
		return Permission{}, false
	}
	return Permission{Resource: Resource(resource), Action: Action(action)}, true
}

// Known reports whether k belongs to the closed permission set.
func (k PermissionKey) Known() bool {
	p, ok := k.Parse()
	if !ok {
		return false
	}
	actions, ok := resourceActions[p.Resource]
	if !ok {
		return false
	}
	for _, a := range actions {
		if a == p.Action {
			return true
		}
	}
	return false
}

// P builds a PermissionKey from its parts.
func P(resource Resource, action Action) PermissionKey {
	return Permission{Resource: resource, Action: action}.Key()
}

var crud = []Action{ActionView, ActionCreate, ActionUpdate, ActionDelete, ActionExport}

// resourceActions is the closed action set per resource.
var resourceActions = map[Resource][]Action{
	ResourceCustomers:   crud,
	ResourceWorkOrders:  append(append([]Action{}, crud...), ActionAssign),
	ResourceInvoices:    append(append([]Action{}, crud...), ActionSend),
	ResourceInventory:   crud,
	ResourceExpenses:    crud,
	ResourceSalaries:    crud,
	ResourceTechnicians: {ActionView, ActionCreate, ActionUpdate, ActionDelete},
	ResourceReports:     {ActionView, ActionExport},
	ResourceSettings:    {ActionView, ActionUpdate},
	ResourceUsers:       {ActionView, ActionCreate, ActionUpdate, ActionDelete},
	ResourceDashboard: {
		ActionView,
		ActionViewStats,
		ActionViewFinancialStats,
		ActionViewWorkOrders,
		ActionViewExpenses,
		ActionViewInventory,
		ActionViewCustomers,
		ActionViewSalaries,
		ActionViewTechnicians,
	},
}

// AllPermissions returns every known permission key, sorted.
func AllPermissions() []PermissionKey {
	keys := make([]PermissionKey, 0, 64)
	for resource, actions := range resourceActions {
		for _, action := range actions {
			keys = append(keys, P(resource, action))
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// RoleKey names a role. The set is closed; unknown keys are dropped during resolution.
type RoleKey string

const (
	RoleAdmin           RoleKey = "admin"
	RoleManager         RoleKey = "manager"
	RoleReceptionist    RoleKey = "receptionist"
	RoleTechnician      RoleKey = "technician"
	RoleAccountant      RoleKey = "accountant"
	RoleCustomerService RoleKey = "customer_service"
)

var knownRoles = map[RoleKey]struct{}{
	RoleAdmin:           {},
	RoleManager:         {},
	RoleReceptionist:    {},
	RoleTechnician:      {},
	RoleAccountant:      {},
	RoleCustomerService: {},
}

// Known reports whether r belongs to the closed role set.
func (r RoleKey) Known() bool {
	_, ok := knownRoles[r]
	return ok
}

// Role is a built-in role with its default grants.
type Role struct {
	Key         RoleKey         `json:"key"`
	DisplayName string          `json:"display_name"`
	Permissions []PermissionKey `json:"permissions"`
}

// BuiltInRoles returns the default role definitions used to seed role_permissions.
// Admin carries no grants: it bypasses every permission check.
func BuiltInRoles() []Role {
	return []Role{
		{Key: RoleAdmin, DisplayName: "Administrator"},
		{
			Key:         RoleManager,
			DisplayName: "Manager",
			Permissions: []PermissionKey{
				"customers.view", "customers.create", "customers.update", "customers.export",
				"work_orders.view", "work_orders.create", "work_orders.update", "work_orders.assign", "work_orders.export",
				"invoices.view", "invoices.create", "invoices.update", "invoices.send", "invoices.export",
				"inventory.view", "inventory.create", "inventory.update", "inventory.export",
				"expenses.view", "expenses.create", "expenses.update",
				"technicians.view", "technicians.update",
				"reports.view", "reports.export",
				"dashboard.view", "dashboard.view_stats", "dashboard.view_financial_stats",
				"dashboard.view_work_orders", "dashboard.view_expenses", "dashboard.view_inventory",
				"dashboard.view_customers", "dashboard.view_technicians",
			},
		},
		{
			Key:         RoleReceptionist,
			DisplayName: "Receptionist",
			Permissions: []PermissionKey{
				"customers.view", "customers.create", "customers.update",
				"work_orders.view", "work_orders.create",
				"inventory.view",
				"dashboard.view", "dashboard.view_stats", "dashboard.view_work_orders", "dashboard.view_customers",
			},
		},
		{
			Key:         RoleTechnician,
			DisplayName: "Technician",
			Permissions: []PermissionKey{
				"work_orders.view", "work_orders.update",
				"inventory.view",
				"customers.view",
				"dashboard.view", "dashboard.view_work_orders",
			},
		},
		{
			Key:         RoleAccountant,
			DisplayName: "Accountant",
			Permissions: []PermissionKey{
				"invoices.view", "invoices.create", "invoices.update", "invoices.send", "invoices.export",
				"expenses.view", "expenses.create", "expenses.update", "expenses.delete", "expenses.export",
				"salaries.view", "salaries.create", "salaries.update", "salaries.export",
				"reports.view", "reports.export",
				"dashboard.view", "dashboard.view_stats", "dashboard.view_financial_stats",
				"dashboard.view_expenses", "dashboard.view_salaries",
			},
		},
		{
			Key:         RoleCustomerService,
			DisplayName: "Customer Service",
			Permissions: []PermissionKey{
				"customers.view", "customers.create", "customers.update",
				"work_orders.view",
				"invoices.view",
				"dashboard.view", "dashboard.view_customers",
			},
		},
	}
}
