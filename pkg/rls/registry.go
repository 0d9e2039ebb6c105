// Package rls manages PostgreSQL row-level security for org-scoped tables.
//
// Every protected table carries an org_id column. Policies compare that
// column against the session setting app.current_org; an unset or empty
// setting makes the comparison NULL, so a connection without org context
// sees no rows and can insert none.
package rls

import (
	"fmt"

	"github.com/lib/pq"
)

const (
	// ContextVar is the session setting consulted by every policy.
	// All code paths that communicate tenant scope to the database
	// must use this single name.
	ContextVar = "app.current_org"

	// IsolationPolicy restricts SELECT/UPDATE/DELETE to rows of the
	// current org.
	IsolationPolicy = "org_isolation"

	// InsertCheckPolicy rejects INSERTs whose org_id does not match
	// the current org.
	InsertCheckPolicy = "org_insert_check"
)

// orgScopedTables is the allow-list of tables that carry org_id and get
// isolation policies. Order is preserved so migration output stays
// deterministic. This registry is the single source of truth; it never
// validates live schema (the migrator does that).
var orgScopedTables = []string{
	"lead",
	"accounts",
	"contacts",
	"opportunity",
	"case",
	"task",
	"invoice",
	"comment",
	"commentFiles",
	"attachments",
	"document",
	"teams",
	"activity",
	"tags",
	"address",
	"solution",
	"board",
	"board_column",
	"board_task",
	"board_member",
	"apiSettings",
	"account_email",
	"emailLogs",
	"invoice_history",
	"invoice_line_item",
	"invoice_template",
	"payment",
	"estimate",
	"estimate_line_item",
	"recurring_invoice",
	"recurring_invoice_line_item",
	"product",
	"security_audit_log",
	"orders",
	"order_line_item",
	"opportunity_line_item",
}

var orgScopedSet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(orgScopedTables))
	for _, table := range orgScopedTables {
		set[table] = struct{}{}
	}
	return set
}()

// Tables returns the registry allow-list in declaration order.
func Tables() []string {
	out := make([]string, len(orgScopedTables))
	copy(out, orgScopedTables)
	return out
}

// IsProtected reports whether table is in the registry.
func IsProtected(table string) bool {
	_, ok := orgScopedSet[table]
	return ok
}

// policyCondition is the row predicate shared by both policies. NULLIF
// turns an unset or empty setting into NULL so the comparison can never
// be true without org context.
func policyCondition() string {
	return fmt.Sprintf("org_id::text = NULLIF(current_setting('%s', true), '')", ContextVar)
}

// EnablePolicySQL returns the ordered statements that enable and force
// RLS on table and (re)create both policies. Table names are checked
// against the registry and quoted before interpolation; arbitrary input
// never reaches the identifier position.
func EnablePolicySQL(table string) ([]string, error) {
	if !IsProtected(table) {
		return nil, fmt.Errorf("rls: table %q is not in the org-scoped registry", table)
	}
	ident := pq.QuoteIdentifier(table)
	cond := policyCondition()
	return []string{
		fmt.Sprintf("ALTER TABLE %s ENABLE ROW LEVEL SECURITY", ident),
		fmt.Sprintf("ALTER TABLE %s FORCE ROW LEVEL SECURITY", ident),
		fmt.Sprintf("DROP POLICY IF EXISTS %s ON %s", IsolationPolicy, ident),
		fmt.Sprintf("CREATE POLICY %s ON %s FOR ALL USING (%s)", IsolationPolicy, ident, cond),
		fmt.Sprintf("DROP POLICY IF EXISTS %s ON %s", InsertCheckPolicy, ident),
		fmt.Sprintf("CREATE POLICY %s ON %s FOR INSERT WITH CHECK (%s)", InsertCheckPolicy, ident, cond),
	}, nil
}

// DisablePolicySQL returns the ordered statements that drop both
// policies and disable RLS on table. Safe to run when forward
// application partially failed: every statement tolerates absence.
func DisablePolicySQL(table string) ([]string, error) {
	if !IsProtected(table) {
		return nil, fmt.Errorf("rls: table %q is not in the org-scoped registry", table)
	}
	ident := pq.QuoteIdentifier(table)
	return []string{
		fmt.Sprintf("DROP POLICY IF EXISTS %s ON %s", IsolationPolicy, ident),
		fmt.Sprintf("DROP POLICY IF EXISTS %s ON %s", InsertCheckPolicy, ident),
		fmt.Sprintf("ALTER TABLE %s NO FORCE ROW LEVEL SECURITY", ident),
		fmt.Sprintf("ALTER TABLE %s DISABLE ROW LEVEL SECURITY", ident),
	}, nil
}
