package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/platinummonkey/shopdesk/pkg/dashboard"
	"github.com/platinummonkey/shopdesk/pkg/tenant"
)

const (
	recentLimit   = 5
	lowStockLimit = 10
)

var (
	openWorkOrderStatuses  = []string{"open", "in_progress"}
	pendingInvoiceStatuses = []string{"sent", "overdue"}
)

// DashboardStore implements dashboard.Source with bun. Every query starts from
// from(), which only hands back a tenant-scoped query.
type DashboardStore struct {
	db func() *bun.DB
}

// NewDashboardStore reads through pick, typically ConnectionManager.ReplicaBun.
func NewDashboardStore(pick func() *bun.DB) *DashboardStore {
	return &DashboardStore{db: pick}
}

var _ dashboard.Source = (*DashboardStore)(nil)

// ErrUnscopedQuery is returned for a dashboard query that never went through
// tenant scoping.
var ErrUnscopedQuery = errors.New("dashboard query is not scoped to an organization")

func requireScope(q dashboard.Query) error {
	if q.OrganizationID() == "" {
		return ErrUnscopedQuery
	}
	return nil
}

// from starts a select on "table AS alias" constrained to the organization q was
// scoped to.
func (s *DashboardStore) from(table, alias string, q dashboard.Query) *bun.SelectQuery {
	sel := s.db().NewSelect().TableExpr("? AS ?", bun.Ident(table), bun.Ident(alias))
	return tenant.NewSelect(sel, alias).WithOrganizationScope(q.OrganizationID())
}

func (s *DashboardStore) count(ctx context.Context, q *bun.SelectQuery) (int, error) {
	var n int
	if err := q.ColumnExpr("count(*)").Scan(ctx, &n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *DashboardStore) sum(ctx context.Context, q *bun.SelectQuery, expr string) (float64, error) {
	var total float64
	if err := q.ColumnExpr("COALESCE(SUM("+expr+"), 0)").Scan(ctx, &total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *DashboardStore) Stats(ctx context.Context, q dashboard.Query) (dashboard.Stats, error) {
	if err := requireScope(q); err != nil {
		return dashboard.Stats{}, err
	}
	var (
		out dashboard.Stats
		err error
	)
	if out.TotalCustomers, err = s.count(ctx, s.from("customers", "c", q)); err != nil {
		return dashboard.Stats{}, fmt.Errorf("failed to count customers: %w", err)
	}
	if out.OpenWorkOrders, err = s.count(ctx, s.from("work_orders", "wo", q).
		Where("wo.status IN (?)", bun.In(openWorkOrderStatuses))); err != nil {
		return dashboard.Stats{}, fmt.Errorf("failed to count open work orders: %w", err)
	}
	if out.PendingInvoices, err = s.count(ctx, s.from("invoices", "i", q).
		Where("i.status IN (?)", bun.In(pendingInvoiceStatuses))); err != nil {
		return dashboard.Stats{}, fmt.Errorf("failed to count pending invoices: %w", err)
	}
	if out.LowStockItems, err = s.count(ctx, s.from("inventory_items", "ii", q).
		Where("ii.quantity <= ii.reorder_level")); err != nil {
		return dashboard.Stats{}, fmt.Errorf("failed to count low stock items: %w", err)
	}
	return out, nil
}

func (s *DashboardStore) Financial(ctx context.Context, q dashboard.Query) (dashboard.Financial, error) {
	if err := requireScope(q); err != nil {
		return dashboard.Financial{}, err
	}
	revenue, err := s.sum(ctx, s.from("invoices", "i", q).
		Where("i.status = ?", "paid").
		Where("i.paid_at >= ? AND i.paid_at < ?", q.From, q.To), "i.total")
	if err != nil {
		return dashboard.Financial{}, fmt.Errorf("failed to sum revenue: %w", err)
	}

	expenses, err := s.sum(ctx, s.from("expenses", "e", q).
		Where("e.incurred_at >= ? AND e.incurred_at < ?", q.From, q.To), "e.amount")
	if err != nil {
		return dashboard.Financial{}, fmt.Errorf("failed to sum expenses: %w", err)
	}

	outstanding, err := s.sum(ctx, s.from("invoices", "i", q).
		Where("i.status IN (?)", bun.In(pendingInvoiceStatuses)), "i.total")
	if err != nil {
		return dashboard.Financial{}, fmt.Errorf("failed to sum outstanding invoices: %w", err)
	}

	return dashboard.Financial{
		Revenue:     dashboard.Money(revenue),
		Expenses:    dashboard.Money(expenses),
		Outstanding: dashboard.Money(outstanding),
	}, nil
}

type statusCount struct {
	Status string `bun:"status"`
	Count  int    `bun:"count"`
}

type workOrderRow struct {
	ID        string    `bun:"id"`
	Title     string    `bun:"title"`
	Status    string    `bun:"status"`
	CreatedAt time.Time `bun:"created_at"`
}

func (s *DashboardStore) WorkOrders(ctx context.Context, q dashboard.Query) (dashboard.WorkOrders, error) {
	if err := requireScope(q); err != nil {
		return dashboard.WorkOrders{}, err
	}
	var counts []statusCount
	if err := s.from("work_orders", "wo", q).
		ColumnExpr("wo.status AS status").
		ColumnExpr("count(*) AS count").
		GroupExpr("wo.status").
		Scan(ctx, &counts); err != nil {
		return dashboard.WorkOrders{}, fmt.Errorf("failed to count work orders by status: %w", err)
	}

	var rows []workOrderRow
	if err := s.from("work_orders", "wo", q).
		ColumnExpr("wo.id, wo.title, wo.status, wo.created_at").
		OrderExpr("wo.created_at DESC").
		Limit(recentLimit).
		Scan(ctx, &rows); err != nil {
		return dashboard.WorkOrders{}, fmt.Errorf("failed to list recent work orders: %w", err)
	}

	out := dashboard.WorkOrders{
		ByStatus: make(map[string]int, len(counts)),
		Recent:   make([]dashboard.WorkOrderSummary, len(rows)),
	}
	for _, c := range counts {
		out.ByStatus[c.Status] = c.Count
	}
	for i, r := range rows {
		out.Recent[i] = dashboard.WorkOrderSummary(r)
	}
	return out, nil
}

type categoryRow struct {
	Category string  `bun:"category"`
	Total    float64 `bun:"total"`
}

func (s *DashboardStore) Expenses(ctx context.Context, q dashboard.Query) (dashboard.Expenses, error) {
	if err := requireScope(q); err != nil {
		return dashboard.Expenses{}, err
	}
	var rows []categoryRow
	if err := s.from("expenses", "e", q).
		ColumnExpr("e.category AS category").
		ColumnExpr("SUM(e.amount) AS total").
		Where("e.incurred_at >= ? AND e.incurred_at < ?", q.From, q.To).
		GroupExpr("e.category").
		OrderExpr("total DESC").
		Scan(ctx, &rows); err != nil {
		return dashboard.Expenses{}, fmt.Errorf("failed to sum expenses by category: %w", err)
	}

	out := dashboard.Expenses{ByCategory: make([]dashboard.CategoryTotal, len(rows))}
	var total float64
	for i, r := range rows {
		total += r.Total
		out.ByCategory[i] = dashboard.CategoryTotal{Category: r.Category, Total: dashboard.Money(r.Total)}
	}
	out.Total = dashboard.Money(total)
	return out, nil
}

type stockRow struct {
	ID           string `bun:"id"`
	Name         string `bun:"name"`
	Quantity     int    `bun:"quantity"`
	ReorderLevel int    `bun:"reorder_level"`
}

func (s *DashboardStore) Inventory(ctx context.Context, q dashboard.Query) (dashboard.Inventory, error) {
	if err := requireScope(q); err != nil {
		return dashboard.Inventory{}, err
	}
	total, err := s.count(ctx, s.from("inventory_items", "ii", q))
	if err != nil {
		return dashboard.Inventory{}, fmt.Errorf("failed to count inventory items: %w", err)
	}

	value, err := s.sum(ctx, s.from("inventory_items", "ii", q), "ii.quantity * ii.unit_cost")
	if err != nil {
		return dashboard.Inventory{}, fmt.Errorf("failed to sum stock value: %w", err)
	}

	var rows []stockRow
	if err := s.from("inventory_items", "ii", q).
		ColumnExpr("ii.id, ii.name, ii.quantity, ii.reorder_level").
		Where("ii.quantity <= ii.reorder_level").
		OrderExpr("ii.quantity ASC, ii.name ASC").
		Limit(lowStockLimit).
		Scan(ctx, &rows); err != nil {
		return dashboard.Inventory{}, fmt.Errorf("failed to list low stock items: %w", err)
	}

	out := dashboard.Inventory{
		TotalItems: total,
		StockValue: dashboard.Money(value),
		LowStock:   make([]dashboard.StockItem, len(rows)),
	}
	for i, r := range rows {
		out.LowStock[i] = dashboard.StockItem(r)
	}
	return out, nil
}

type customerRow struct {
	ID        string    `bun:"id"`
	Name      string    `bun:"name"`
	CreatedAt time.Time `bun:"created_at"`
}

func (s *DashboardStore) Customers(ctx context.Context, q dashboard.Query) (dashboard.Customers, error) {
	if err := requireScope(q); err != nil {
		return dashboard.Customers{}, err
	}
	total, err := s.count(ctx, s.from("customers", "c", q))
	if err != nil {
		return dashboard.Customers{}, fmt.Errorf("failed to count customers: %w", err)
	}

	fresh, err := s.count(ctx, s.from("customers", "c", q).
		Where("c.created_at >= ? AND c.created_at < ?", q.From, q.To))
	if err != nil {
		return dashboard.Customers{}, fmt.Errorf("failed to count new customers: %w", err)
	}

	var rows []customerRow
	if err := s.from("customers", "c", q).
		ColumnExpr("c.id, c.name, c.created_at").
		OrderExpr("c.created_at DESC").
		Limit(recentLimit).
		Scan(ctx, &rows); err != nil {
		return dashboard.Customers{}, fmt.Errorf("failed to list recent customers: %w", err)
	}

	out := dashboard.Customers{
		Total:        total,
		NewThisMonth: fresh,
		Recent:       make([]dashboard.CustomerSummary, len(rows)),
	}
	for i, r := range rows {
		out.Recent[i] = dashboard.CustomerSummary(r)
	}
	return out, nil
}

type payrollRow struct {
	Total     float64 `bun:"total"`
	Payments  int     `bun:"payments"`
	Employees int     `bun:"employees"`
}

func (s *DashboardStore) Payroll(ctx context.Context, q dashboard.Query) (dashboard.Payroll, error) {
	if err := requireScope(q); err != nil {
		return dashboard.Payroll{}, err
	}
	var row payrollRow
	if err := s.from("salary_payments", "sp", q).
		ColumnExpr("COALESCE(SUM(sp.amount), 0) AS total").
		ColumnExpr("count(*) AS payments").
		ColumnExpr("count(DISTINCT sp.employee_id) AS employees").
		Where("sp.paid_at >= ? AND sp.paid_at < ?", q.From, q.To).
		Scan(ctx, &row); err != nil {
		return dashboard.Payroll{}, fmt.Errorf("failed to sum payroll: %w", err)
	}
	return dashboard.Payroll{
		Total:     dashboard.Money(row.Total),
		Payments:  row.Payments,
		Employees: row.Employees,
	}, nil
}

type technicianRow struct {
	ID             string `bun:"id"`
	Name           string `bun:"name"`
	OpenWorkOrders int    `bun:"open_work_orders"`
}

func (s *DashboardStore) Technicians(ctx context.Context, q dashboard.Query) (dashboard.Technicians, error) {
	if err := requireScope(q); err != nil {
		return dashboard.Technicians{}, err
	}
	var rows []technicianRow
	if err := s.from("technicians", "t", q).
		ColumnExpr("t.id AS id, t.name AS name").
		ColumnExpr("count(wo.id) AS open_work_orders").
		Join("LEFT JOIN work_orders AS wo ON wo.technician_id = t.id AND wo.organization_id = t.organization_id AND wo.status IN (?)",
			bun.In(openWorkOrderStatuses)).
		Where("t.is_active = ?", true).
		GroupExpr("t.id, t.name").
		OrderExpr("open_work_orders DESC, t.name ASC").
		Scan(ctx, &rows); err != nil {
		return dashboard.Technicians{}, fmt.Errorf("failed to load technician workload: %w", err)
	}

	out := dashboard.Technicians{
		Active:   len(rows),
		Workload: make([]dashboard.TechnicianLoad, len(rows)),
	}
	for i, r := range rows {
		out.Workload[i] = dashboard.TechnicianLoad(r)
	}
	return out, nil
}
