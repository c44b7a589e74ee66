package dashboard

import (
	"context"

	"github.com/platinummonkey/shopdesk/pkg/rbac"
	"github.com/platinummonkey/shopdesk/pkg/tenant"
)

// Subject is the session a dashboard is built for. *auth.AuthContext satisfies it.
type Subject interface {
	rbac.Subject
	tenant.Subject
}

// Source reads the data behind each section. Every Query handed to a Source has
// been through tenant.ScopeWithOverride.
type Source interface {
	Stats(ctx context.Context, q Query) (Stats, error)
	Financial(ctx context.Context, q Query) (Financial, error)
	WorkOrders(ctx context.Context, q Query) (WorkOrders, error)
	Expenses(ctx context.Context, q Query) (Expenses, error)
	Inventory(ctx context.Context, q Query) (Inventory, error)
	Customers(ctx context.Context, q Query) (Customers, error)
	Payroll(ctx context.Context, q Query) (Payroll, error)
	Technicians(ctx context.Context, q Query) (Technicians, error)
}

// Section names
const (
	SectionStats       = "stats"
	SectionFinancial   = "financial"
	SectionWorkOrders  = "work_orders"
	SectionExpenses    = "expenses"
	SectionInventory   = "inventory"
	SectionCustomers   = "customers"
	SectionPayroll     = "payroll"
	SectionTechnicians = "technicians"
)

type section struct {
	name       string
	permission rbac.PermissionKey
	fetch      func(ctx context.Context, src Source, q Query) (interface{}, error)
	fallback   func() interface{}
}

// Definition describes one section for clients.
type Definition struct {
	Name       string             `json:"name"`
	Permission rbac.PermissionKey `json:"permission"`
}

var sections = []section{
	{
		name:       SectionStats,
		permission: rbac.P(rbac.ResourceDashboard, rbac.ActionViewStats),
		fetch: func(ctx context.Context, src Source, q Query) (interface{}, error) {
			return src.Stats(ctx, q)
		},
		fallback: func() interface{} { return Stats{} },
	},
	{
		name:       SectionFinancial,
		permission: rbac.P(rbac.ResourceDashboard, rbac.ActionViewFinancialStats),
		fetch: func(ctx context.Context, src Source, q Query) (interface{}, error) {
			f, err := src.Financial(ctx, q)
			if err != nil {
				return nil, err
			}
			// from unrounded totals
			f.NetProfit = f.Revenue - f.Expenses
			return f, nil
		},
		fallback: func() interface{} { return Financial{} },
	},
	{
		name:       SectionWorkOrders,
		permission: rbac.P(rbac.ResourceDashboard, rbac.ActionViewWorkOrders),
		fetch: func(ctx context.Context, src Source, q Query) (interface{}, error) {
			w, err := src.WorkOrders(ctx, q)
			if err != nil {
				return nil, err
			}
			if w.ByStatus == nil {
				w.ByStatus = map[string]int{}
			}
			if w.Recent == nil {
				w.Recent = []WorkOrderSummary{}
			}
			return w, nil
		},
		fallback: func() interface{} {
			return WorkOrders{ByStatus: map[string]int{}, Recent: []WorkOrderSummary{}}
		},
	},
	{
		name:       SectionExpenses,
		permission: rbac.P(rbac.ResourceDashboard, rbac.ActionViewExpenses),
		fetch: func(ctx context.Context, src Source, q Query) (interface{}, error) {
			e, err := src.Expenses(ctx, q)
			if err != nil {
				return nil, err
			}
			if e.ByCategory == nil {
				e.ByCategory = []CategoryTotal{}
			}
			return e, nil
		},
		fallback: func() interface{} { return Expenses{ByCategory: []CategoryTotal{}} },
	},
	{
		name:       SectionInventory,
		permission: rbac.P(rbac.ResourceDashboard, rbac.ActionViewInventory),
		fetch: func(ctx context.Context, src Source, q Query) (interface{}, error) {
			i, err := src.Inventory(ctx, q)
			if err != nil {
				return nil, err
			}
			if i.LowStock == nil {
				i.LowStock = []StockItem{}
			}
			return i, nil
		},
		fallback: func() interface{} { return Inventory{LowStock: []StockItem{}} },
	},
	{
		name:       SectionCustomers,
		permission: rbac.P(rbac.ResourceDashboard, rbac.ActionViewCustomers),
		fetch: func(ctx context.Context, src Source, q Query) (interface{}, error) {
			c, err := src.Customers(ctx, q)
			if err != nil {
				return nil, err
			}
			if c.Recent == nil {
				c.Recent = []CustomerSummary{}
			}
			return c, nil
		},
		fallback: func() interface{} { return Customers{Recent: []CustomerSummary{}} },
	},
	{
		name:       SectionPayroll,
		permission: rbac.P(rbac.ResourceDashboard, rbac.ActionViewSalaries),
		fetch: func(ctx context.Context, src Source, q Query) (interface{}, error) {
			return src.Payroll(ctx, q)
		},
		fallback: func() interface{} { return Payroll{} },
	},
	{
		name:       SectionTechnicians,
		permission: rbac.P(rbac.ResourceDashboard, rbac.ActionViewTechnicians),
		fetch: func(ctx context.Context, src Source, q Query) (interface{}, error) {
			t, err := src.Technicians(ctx, q)
			if err != nil {
				return nil, err
			}
			if t.Workload == nil {
				t.Workload = []TechnicianLoad{}
			}
			return t, nil
		},
		fallback: func() interface{} { return Technicians{Workload: []TechnicianLoad{}} },
	},
}

// Definitions lists every section in display order.
func Definitions() []Definition {
	defs := make([]Definition, len(sections))
	for i, s := range sections {
		defs[i] = Definition{Name: s.name, Permission: s.permission}
	}
	return defs
}

// Permissions evaluates every section's gate for subject. The map always has one
// entry per section.
func Permissions(subject rbac.Subject) map[string]bool {
	perms := make(map[string]bool, len(sections))
	for _, s := range sections {
		perms[s.name] = rbac.Check(subject, s.permission).Allowed
	}
	return perms
}
