package dashboard

import (
	"math"
	"strconv"
	"time"

	"github.com/platinummonkey/shopdesk/pkg/tenant"
)

// Money is a currency amount. It is carried at full precision and rounded to two
// decimals only when serialized.
type Money float64

// Round returns m rounded half away from zero to two decimals.
func (m Money) Round() float64 {
	r := math.Round(float64(m)*100) / 100
	if r == 0 {
		// avoid "-0.00"
		return 0
	}
	return r
}

func (m Money) MarshalJSON() ([]byte, error) {
	return strconv.AppendFloat(nil, m.Round(), 'f', 2, 64), nil
}

// Query identifies the organization and reporting period a section reads. The
// organization is only ever set by tenant scoping.
type Query struct {
	organizationID string

	From time.Time
	To   time.Time
}

// WithOrganizationScope returns q bound to orgID.
func (q Query) WithOrganizationScope(orgID string) Query {
	q.organizationID = orgID
	return q
}

// OrganizationID returns the scoped organization, or "" if q was never scoped.
func (q Query) OrganizationID() string {
	return q.organizationID
}

var _ tenant.Scopable[Query] = Query{}

// Stats is the "stats" section: headline counters.
type Stats struct {
	TotalCustomers  int `json:"total_customers"`
	OpenWorkOrders  int `json:"open_work_orders"`
	PendingInvoices int `json:"pending_invoices"`
	LowStockItems   int `json:"low_stock_items"`
}

// Financial is the "financial" section for the reporting period.
type Financial struct {
	Revenue     Money `json:"revenue"`
	Expenses    Money `json:"expenses"`
	NetProfit   Money `json:"net_profit"`
	Outstanding Money `json:"outstanding"`
}

// WorkOrders is the "work_orders" section.
type WorkOrders struct {
	ByStatus map[string]int     `json:"by_status"`
	Recent   []WorkOrderSummary `json:"recent"`
}

type WorkOrderSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Expenses is the "expenses" section for the reporting period.
type Expenses struct {
	Total      Money           `json:"total"`
	ByCategory []CategoryTotal `json:"by_category"`
}

type CategoryTotal struct {
	Category string `json:"category"`
	Total    Money  `json:"total"`
}

// Inventory is the "inventory" section.
type Inventory struct {
	TotalItems int         `json:"total_items"`
	StockValue Money       `json:"stock_value"`
	LowStock   []StockItem `json:"low_stock"`
}

type StockItem struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Quantity     int    `json:"quantity"`
	ReorderLevel int    `json:"reorder_level"`
}

// Customers is the "customers" section.
type Customers struct {
	Total        int               `json:"total"`
	NewThisMonth int               `json:"new_this_month"`
	Recent       []CustomerSummary `json:"recent"`
}

type CustomerSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Payroll is the "payroll" section for the reporting period.
type Payroll struct {
	Total     Money `json:"total"`
	Payments  int   `json:"payments"`
	Employees int   `json:"employees"`
}

// Technicians is the "technicians" section.
type Technicians struct {
	Active   int              `json:"active"`
	Workload []TechnicianLoad `json:"workload"`
}

type TechnicianLoad struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	OpenWorkOrders int    `json:"open_work_orders"`
}

// Response is the dashboard payload. Permissions always lists every section;
// Sections holds only the enabled ones.
type Response struct {
	Sections    map[string]interface{} `json:"sections"`
	Permissions map[string]bool        `json:"permissions"`
}
