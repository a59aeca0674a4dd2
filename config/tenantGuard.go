package config

import (
	"context"
	"strings"

	"github.com/cosmoos/cosmo_backend/appctx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const tenantColumn = "company_id"

// TenantGuardPlugin adds `company_id = <request company>` to every query,
// row read, update and delete on a model that has a company_id column,
// unless the statement already filters on it.
//
// Raw SQL (db.Raw / db.Exec) is not seen by these callbacks. Public rider
// links and webhook location lookups run before a tenant is known and set
// the skip-tenant-scope flag; platform admins bypass it too.
type TenantGuardPlugin struct{}

func NewTenantGuardPlugin() *TenantGuardPlugin { return &TenantGuardPlugin{} }

func (p *TenantGuardPlugin) Name() string { return "tenant_guard" }

func (p *TenantGuardPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	if err := cb.Query().Before("gorm:query").Register("tenant_guard:query", scopeToTenant); err != nil {
		return err
	}
	if err := cb.Row().Before("gorm:row").Register("tenant_guard:row", scopeToTenant); err != nil {
		return err
	}
	if err := cb.Update().Before("gorm:update").Register("tenant_guard:update", scopeToTenant); err != nil {
		return err
	}
	return cb.Delete().Before("gorm:delete").Register("tenant_guard:delete", scopeToTenant)
}

func scopeToTenant(db *gorm.DB) {
	stmt := db.Statement
	if stmt == nil || stmt.Context == nil || stmt.Schema == nil {
		return
	}
	companyID, ok := tenantFromContext(stmt.Context)
	if !ok || !hasTenantColumn(stmt) {
		return
	}
	if where, ok := stmt.Clauses["WHERE"].Expression.(clause.Where); ok && filtersTenant(where.Exprs...) {
		return
	}
	stmt.AddClause(clause.Where{Exprs: []clause.Expression{
		clause.Eq{Column: clause.Column{Table: stmt.Table, Name: tenantColumn}, Value: companyID},
	}})
}

// tenantFromContext returns the company to scope to, or false when the
// statement runs unscoped.
func tenantFromContext(ctx context.Context) (string, bool) {
	if skip, _ := appctx.GetBool(ctx, appctx.ContextKeySkipTenantScope); skip {
		return "", false
	}
	if admin, _ := appctx.GetBool(ctx, appctx.ContextKeyIsAdmin); admin {
		return "", false
	}
	companyID, _ := appctx.GetString(ctx, appctx.ContextKeyCompanyId)
	return companyID, companyID != ""
}

func hasTenantColumn(stmt *gorm.Statement) bool {
	_, ok := stmt.Schema.FieldsByDBName[tenantColumn]
	return ok
}

// filtersTenant reports whether a condition already pins company_id by
// equality or membership. Raw string conditions are matched by substring.
func filtersTenant(exprs ...clause.Expression) bool {
	for _, e := range exprs {
		var hit bool
		switch v := e.(type) {
		case clause.Eq:
			hit = isTenantColumn(v.Column)
		case clause.IN:
			hit = isTenantColumn(v.Column)
		case clause.AndConditions:
			hit = filtersTenant(v.Exprs...)
		case clause.OrConditions:
			hit = filtersTenant(v.Exprs...)
		case clause.Expr:
			hit = strings.Contains(strings.ToLower(v.SQL), tenantColumn)
		case clause.NamedExpr:
			hit = strings.Contains(strings.ToLower(v.SQL), tenantColumn)
		}
		if hit {
			return true
		}
	}
	return false
}

func isTenantColumn(col any) bool {
	switch c := col.(type) {
	case string:
		return strings.EqualFold(c, tenantColumn)
	case clause.Column:
		return strings.EqualFold(c.Name, tenantColumn)
	}
	return false
}
