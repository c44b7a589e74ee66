package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/shopdesk/pkg/apperror"
	"github.com/platinummonkey/shopdesk/pkg/auth"
	"github.com/platinummonkey/shopdesk/pkg/observability"
	"github.com/platinummonkey/shopdesk/pkg/rbac"
)

// fakeSource returns canned data; individual sections can be made to fail,
// panic or hang.
type fakeSource struct {
	mu      sync.Mutex
	calls   map[string]int
	orgs    map[string]string
	failing map[string]error
	panics  map[string]bool
	hang    map[string]bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		calls:   map[string]int{},
		orgs:    map[string]string{},
		failing: map[string]error{},
		panics:  map[string]bool{},
		hang:    map[string]bool{},
	}
}

func (f *fakeSource) enter(ctx context.Context, name string, q Query) error {
	f.mu.Lock()
	f.calls[name]++
	f.orgs[name] = q.OrganizationID()
	err, panics, hang := f.failing[name], f.panics[name], f.hang[name]
	f.mu.Unlock()

	if panics {
		panic("boom in " + name)
	}
	if hang {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (f *fakeSource) called(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeSource) Stats(ctx context.Context, q Query) (Stats, error) {
	if err := f.enter(ctx, SectionStats, q); err != nil {
		return Stats{}, err
	}
	return Stats{TotalCustomers: 12, OpenWorkOrders: 4, PendingInvoices: 3, LowStockItems: 2}, nil
}

func (f *fakeSource) Financial(ctx context.Context, q Query) (Financial, error) {
	if err := f.enter(ctx, SectionFinancial, q); err != nil {
		return Financial{}, err
	}
	return Financial{Revenue: 100.006, Expenses: 40.004, Outstanding: 10}, nil
}

func (f *fakeSource) WorkOrders(ctx context.Context, q Query) (WorkOrders, error) {
	if err := f.enter(ctx, SectionWorkOrders, q); err != nil {
		return WorkOrders{}, err
	}
	return WorkOrders{ByStatus: map[string]int{"open": 4, "done": 9}}, nil
}

func (f *fakeSource) Expenses(ctx context.Context, q Query) (Expenses, error) {
	if err := f.enter(ctx, SectionExpenses, q); err != nil {
		return Expenses{}, err
	}
	return Expenses{Total: 40.004, ByCategory: []CategoryTotal{{Category: "parts", Total: 40.004}}}, nil
}

func (f *fakeSource) Inventory(ctx context.Context, q Query) (Inventory, error) {
	if err := f.enter(ctx, SectionInventory, q); err != nil {
		return Inventory{}, err
	}
	return Inventory{TotalItems: 30, StockValue: 1200.5}, nil
}

func (f *fakeSource) Customers(ctx context.Context, q Query) (Customers, error) {
	if err := f.enter(ctx, SectionCustomers, q); err != nil {
		return Customers{}, err
	}
	return Customers{Total: 12, NewThisMonth: 2}, nil
}

func (f *fakeSource) Payroll(ctx context.Context, q Query) (Payroll, error) {
	if err := f.enter(ctx, SectionPayroll, q); err != nil {
		return Payroll{}, err
	}
	return Payroll{Total: 5000, Payments: 3, Employees: 3}, nil
}

func (f *fakeSource) Technicians(ctx context.Context, q Query) (Technicians, error) {
	if err := f.enter(ctx, SectionTechnicians, q); err != nil {
		return Technicians{}, err
	}
	return Technicians{Active: 3}, nil
}

func newSubject(t *testing.T, roles []rbac.RoleKey, perms ...rbac.PermissionKey) *auth.AuthContext {
	t.Helper()
	ctx, err := auth.NewAuthContext(auth.Profile{UserID: "user-1", OrganizationID: "org-a", IsActive: true}, roles, perms)
	require.NoError(t, err)
	return ctx
}

func adminSubject(t *testing.T) *auth.AuthContext {
	return newSubject(t, []rbac.RoleKey{rbac.RoleAdmin})
}

func loggedContext() (context.Context, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := observability.NewLogger(observability.DebugLevel, &buf)
	return observability.WithLogger(context.Background(), logger), &buf
}

func TestAdminSeesEverySection(t *testing.T) {
	src := newFakeSource()
	agg := NewAggregator(src)

	resp, err := agg.Build(context.Background(), adminSubject(t), "org-a")
	require.NoError(t, err)

	assert.Len(t, resp.Permissions, len(Definitions()))
	assert.Len(t, resp.Sections, len(Definitions()))
	for _, def := range Definitions() {
		assert.True(t, resp.Permissions[def.Name], def.Name)
		assert.Equal(t, 1, src.called(def.Name), def.Name)
		assert.Equal(t, "org-a", src.orgs[def.Name])
	}
}

func TestSectionIsolation(t *testing.T) {
	src := newFakeSource()
	src.failing[SectionInventory] = errors.New("relation \"inventory_items\" does not exist")
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_section_failures_total"}, []string{"section", "reason"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "test_section_seconds"}, []string{"section", "outcome"})
	agg := NewAggregator(src, WithMetrics(duration, failures))

	ctx, logs := loggedContext()
	resp, err := agg.Build(ctx, adminSubject(t), "org-a")
	require.NoError(t, err)

	require.Len(t, resp.Sections, len(Definitions()))
	assert.Equal(t, Inventory{LowStock: []StockItem{}}, resp.Sections[SectionInventory])
	assert.Equal(t, Stats{TotalCustomers: 12, OpenWorkOrders: 4, PendingInvoices: 3, LowStockItems: 2}, resp.Sections[SectionStats])

	assert.Equal(t, float64(1), testutil.ToFloat64(failures.WithLabelValues(SectionInventory, FailureError)))
	assert.Contains(t, logs.String(), "dashboard section failed, serving fallback")
	assert.Contains(t, logs.String(), `"section":"inventory"`)
}

func TestSectionPanicIsContained(t *testing.T) {
	src := newFakeSource()
	src.panics[SectionCustomers] = true
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_panic_failures_total"}, []string{"section", "reason"})
	agg := NewAggregator(src, WithMetrics(nil, failures))

	ctx, logs := loggedContext()
	resp, err := agg.Build(ctx, adminSubject(t), "org-a")
	require.NoError(t, err)

	assert.Equal(t, Customers{Recent: []CustomerSummary{}}, resp.Sections[SectionCustomers])
	assert.Equal(t, float64(1), testutil.ToFloat64(failures.WithLabelValues(SectionCustomers, FailurePanic)))
	assert.Contains(t, logs.String(), "boom in customers")
}

func TestSectionTimeout(t *testing.T) {
	src := newFakeSource()
	src.hang[SectionPayroll] = true
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_timeout_failures_total"}, []string{"section", "reason"})
	agg := NewAggregator(src, WithSectionTimeout(30*time.Millisecond), WithMetrics(nil, failures))

	start := time.Now()
	resp, err := agg.Build(context.Background(), adminSubject(t), "org-a")
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, Payroll{}, resp.Sections[SectionPayroll])
	assert.Equal(t, Technicians{Active: 3, Workload: []TechnicianLoad{}}, resp.Sections[SectionTechnicians])
	assert.Equal(t, float64(1), testutil.ToFloat64(failures.WithLabelValues(SectionPayroll, FailureTimeout)))
}

func TestSectionTimeoutWhenSourceIgnoresContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	src := &blockingSource{fakeSource: newFakeSource(), release: release}
	agg := NewAggregator(src, WithSectionTimeout(30*time.Millisecond))

	resp, err := agg.Build(context.Background(), adminSubject(t), "org-a")
	require.NoError(t, err)
	assert.Equal(t, Stats{}, resp.Sections[SectionStats])
}

// blockingSource blocks Stats until released, ignoring its context.
type blockingSource struct {
	*fakeSource
	release chan struct{}
}

func (b *blockingSource) Stats(context.Context, Query) (Stats, error) {
	<-b.release
	return Stats{TotalCustomers: 1}, nil
}

func TestDisabledSectionsAreNotFetched(t *testing.T) {
	src := newFakeSource()
	agg := NewAggregator(src)

	// no dashboard.view_expenses
	subject := newSubject(t, []rbac.RoleKey{rbac.RoleReceptionist},
		"dashboard.view",
		"dashboard.view_stats",
		"dashboard.view_work_orders",
		"dashboard.view_customers",
	)

	resp, err := agg.Build(context.Background(), subject, "org-a")
	require.NoError(t, err)

	assert.False(t, resp.Permissions[SectionExpenses])
	assert.False(t, resp.Permissions[SectionFinancial])
	assert.True(t, resp.Permissions[SectionStats])
	assert.Len(t, resp.Permissions, len(Definitions()), "permissions map is always complete")

	assert.NotContains(t, resp.Sections, SectionExpenses)
	assert.NotContains(t, resp.Sections, SectionFinancial)
	assert.Len(t, resp.Sections, 3)
	assert.Equal(t, 0, src.called(SectionExpenses))
}

func TestFinancialNetProfitFromUnroundedTotals(t *testing.T) {
	src := newFakeSource()
	agg := NewAggregator(src)

	resp, err := agg.Build(context.Background(), adminSubject(t), "org-a")
	require.NoError(t, err)

	fin := resp.Sections[SectionFinancial].(Financial)
	assert.InDelta(t, 60.002, float64(fin.NetProfit), 1e-9)

	out, err := json.Marshal(fin)
	require.NoError(t, err)
	assert.JSONEq(t, `{"revenue":100.01,"expenses":40.00,"net_profit":60.00,"outstanding":10.00}`, string(out))
}

func TestBuildRequiresSubject(t *testing.T) {
	src := newFakeSource()
	agg := NewAggregator(src)

	_, err := agg.Build(context.Background(), nil, "org-a")
	assert.Equal(t, apperror.CodeUnauthorized, apperror.CodeOf(err))

	var missing *auth.AuthContext
	_, err = agg.Build(context.Background(), missing, "")
	assert.Equal(t, apperror.CodeUnauthorized, apperror.CodeOf(err))
	assert.Equal(t, 0, src.called(SectionStats))
}

func TestBuildScopesOrganization(t *testing.T) {
	receptionist := func(t *testing.T) *auth.AuthContext {
		return newSubject(t, []rbac.RoleKey{rbac.RoleReceptionist}, "dashboard.view", "dashboard.view_stats")
	}

	tests := []struct {
		name     string
		subject  func(t *testing.T) *auth.AuthContext
		override string
		wantOrg  string
		wantCode apperror.Code
	}{
		{name: "own organization by default", subject: receptionist, wantOrg: "org-a"},
		{name: "own organization named explicitly", subject: receptionist, override: "org-a", wantOrg: "org-a"},
		{name: "non-admin foreign organization", subject: receptionist, override: "org-b", wantCode: apperror.CodeForbidden},
		{name: "admin override", subject: adminSubject, override: "org-b", wantOrg: "org-b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newFakeSource()
			agg := NewAggregator(src)

			resp, err := agg.Build(context.Background(), tt.subject(t), tt.override)
			if tt.wantCode != "" {
				assert.Nil(t, resp)
				assert.Equal(t, tt.wantCode, apperror.CodeOf(err))
				assert.Equal(t, 0, src.called(SectionStats), "no section is fetched for a rejected scope")
				return
			}
			require.NoError(t, err)
			src.mu.Lock()
			assert.Equal(t, tt.wantOrg, src.orgs[SectionStats])
			src.mu.Unlock()
		})
	}
}

func TestResponseJSON(t *testing.T) {
	src := newFakeSource()
	src.failing[SectionWorkOrders] = errors.New("down")
	agg := NewAggregator(src)

	resp, err := agg.Build(context.Background(), adminSubject(t), "org-a")
	require.NoError(t, err)

	out, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded struct {
		Sections    map[string]json.RawMessage `json:"sections"`
		Permissions map[string]bool            `json:"permissions"`
	}
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.JSONEq(t, `{"by_status":{},"recent":[]}`, string(decoded.Sections[SectionWorkOrders]))
	assert.JSONEq(t, `{"total":5000.00,"payments":3,"employees":3}`, string(decoded.Sections[SectionPayroll]))
}

func TestPeriod(t *testing.T) {
	from, to := Period(time.Date(2026, 2, 17, 23, 59, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), to)
}
