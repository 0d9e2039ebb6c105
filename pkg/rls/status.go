package rls

import (
	"context"

	"gorm.io/gorm"
)

// TableStatus reports the RLS state of one registry table.
type TableStatus struct {
	Table      string `json:"table"`
	Exists     bool   `json:"exists"`
	RLSEnabled bool   `json:"rls_enabled"`
	RLSForced  bool   `json:"rls_forced"`
	Policies   int    `json:"policies"`
}

const statusQuery = `
	SELECT
		c.relrowsecurity AS relrowsecurity,
		c.relforcerowsecurity AS relforcerowsecurity,
		(SELECT count(*) FROM pg_catalog.pg_policy p WHERE p.polrelid = c.oid) AS count
	FROM pg_catalog.pg_class c
	JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
	WHERE c.relkind = 'r' AND n.nspname = current_schema() AND c.relname = ?`

// Status reports, per registry table, whether RLS is enabled and forced
// and how many policies are attached. Read-only; used by the
// operational status command, never on the request path.
func Status(ctx context.Context, db *gorm.DB) ([]TableStatus, error) {
	out := make([]TableStatus, 0, len(orgScopedTables))
	for _, table := range Tables() {
		var row struct {
			Relrowsecurity      bool
			Relforcerowsecurity bool
			Count               int
		}
		result := db.WithContext(ctx).Raw(statusQuery, table).Scan(&row)
		if result.Error != nil {
			return nil, result.Error
		}
		status := TableStatus{Table: table}
		if result.RowsAffected > 0 {
			status.Exists = true
			status.RLSEnabled = row.Relrowsecurity
			status.RLSForced = row.Relforcerowsecurity
			status.Policies = row.Count
		}
		out = append(out, status)
	}
	return out, nil
}
