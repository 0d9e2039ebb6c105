package rls

import (
	"strings"
	"testing"
)

func TestTablesReturnsCopy(t *testing.T) {
	first := Tables()
	first[0] = "mutated"
	if Tables()[0] == "mutated" {
		t.Fatal("Tables must return a copy of the registry")
	}
}

func TestEveryRegistryTableIsProtected(t *testing.T) {
	for _, table := range Tables() {
		if !IsProtected(table) {
			t.Fatalf("table %q in registry but not protected", table)
		}
	}
	if IsProtected("users") {
		t.Fatal("identity table users must not be in the registry")
	}
	if IsProtected("organizations") {
		t.Fatal("organizations must not be in the registry")
	}
	if IsProtected("profiles") {
		t.Fatal("profiles must not be in the registry")
	}
	if IsProtected("sessions") {
		t.Fatal("sessions must not be in the registry")
	}
}

func TestEnablePolicySQLStatements(t *testing.T) {
	stmts, err := EnablePolicySQL("lead")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{
		`ALTER TABLE "lead" ENABLE ROW LEVEL SECURITY`,
		`ALTER TABLE "lead" FORCE ROW LEVEL SECURITY`,
		`DROP POLICY IF EXISTS org_isolation ON "lead"`,
		`CREATE POLICY org_isolation ON "lead" FOR ALL USING (org_id::text = NULLIF(current_setting('app.current_org', true), ''))`,
		`DROP POLICY IF EXISTS org_insert_check ON "lead"`,
		`CREATE POLICY org_insert_check ON "lead" FOR INSERT WITH CHECK (org_id::text = NULLIF(current_setting('app.current_org', true), ''))`,
	}
	if len(stmts) != len(want) {
		t.Fatalf("expected %d statements, got %d", len(want), len(stmts))
	}
	for i := range want {
		if stmts[i] != want[i] {
			t.Fatalf("statement %d mismatch:\n got %q\nwant %q", i, stmts[i], want[i])
		}
	}
}

func TestEnablePolicySQLQuotesMixedCaseIdentifiers(t *testing.T) {
	for _, table := range []string{"case", "commentFiles", "apiSettings", "emailLogs"} {
		stmts, err := EnablePolicySQL(table)
		if err != nil {
			t.Fatalf("table %q: unexpected error: %v", table, err)
		}
		quoted := `"` + table + `"`
		for _, stmt := range stmts {
			if !strings.Contains(stmt, quoted) {
				t.Fatalf("table %q: statement %q lacks quoted identifier %s", table, stmt, quoted)
			}
		}
	}
}

func TestEnablePolicySQLRejectsUnlistedTable(t *testing.T) {
	for _, table := range []string{"users", "lead; DROP TABLE users", ""} {
		if _, err := EnablePolicySQL(table); err == nil {
			t.Fatalf("expected rejection for %q", table)
		}
		if _, err := DisablePolicySQL(table); err == nil {
			t.Fatalf("expected rejection for %q", table)
		}
	}
}

func TestDisablePolicySQLReversesEnable(t *testing.T) {
	stmts, err := DisablePolicySQL("orders")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stmts) != 4 {
		t.Fatalf("expected 4 statements, got %d", len(stmts))
	}
	if !strings.Contains(stmts[2], "NO FORCE ROW LEVEL SECURITY") {
		t.Fatalf("expected NO FORCE before DISABLE, got %q", stmts[2])
	}
	if !strings.Contains(stmts[3], "DISABLE ROW LEVEL SECURITY") {
		t.Fatalf("expected DISABLE last, got %q", stmts[3])
	}
}

func TestPolicyConditionNullsOutWithoutContext(t *testing.T) {
	cond := policyCondition()
	if !strings.Contains(cond, "NULLIF") {
		t.Fatalf("condition must use NULLIF so empty context matches nothing: %q", cond)
	}
	if !strings.Contains(cond, ContextVar) {
		t.Fatalf("condition must reference %s: %q", ContextVar, cond)
	}
	if !strings.Contains(cond, "current_setting('app.current_org', true)") {
		t.Fatalf("condition must read the setting in missing_ok mode: %q", cond)
	}
}
