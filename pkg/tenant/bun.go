package tenant

import (
	"github.com/uptrace/bun"
)

// Column is the tenant column present on every tenant-scoped table.
const Column = "organization_id"

// Select wraps a bun select query so it can only be executed once scoped.
type Select struct {
	q     *bun.SelectQuery
	alias string
}

// NewSelect wraps q. alias is the table alias (or table name) whose organization_id
// column is constrained.
func NewSelect(q *bun.SelectQuery, alias string) Select {
	return Select{q: q, alias: alias}
}

// WithOrganizationScope appends "<alias>.organization_id = orgID" and returns the
// underlying query.
func (s Select) WithOrganizationScope(orgID string) *bun.SelectQuery {
	return s.q.Where("?.? = ?", bun.Ident(s.alias), bun.Ident(Column), orgID)
}

var _ Scopable[*bun.SelectQuery] = Select{}
