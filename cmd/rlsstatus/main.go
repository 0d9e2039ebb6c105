// Command rlsstatus prints the row-level security state of every
// registry table. Operators run it against production after a
// migration to verify no org-scoped table is left unprotected.
//
// Exit code 1 means at least one existing table lacks enabled and
// forced RLS with attached policies, so the check can gate deploys.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/opencrmhq/opencrm/internal/config"
	"github.com/opencrmhq/opencrm/pkg/rls"
)

const statusQuery = `
	SELECT
		c.relrowsecurity,
		c.relforcerowsecurity,
		(SELECT count(*) FROM pg_catalog.pg_policy p WHERE p.polrelid = c.oid)
	FROM pg_catalog.pg_class c
	JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
	WHERE c.relkind = 'r' AND n.nspname = current_schema() AND c.relname = $1`

func main() {
	var dsn string
	flag.StringVar(&dsn, "dsn", "", "postgres connection string (defaults to DATABASE_* env)")
	flag.Parse()

	if dsn == "" {
		cfg := config.Load()
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
			cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBSSLMode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close(ctx)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TABLE\tEXISTS\tENABLED\tFORCED\tPOLICIES")

	unprotected := 0
	for _, table := range rls.Tables() {
		var enabled, forced bool
		var policies int
		err := conn.QueryRow(ctx, statusQuery, table).Scan(&enabled, &forced, &policies)
		switch {
		case err == pgx.ErrNoRows:
			fmt.Fprintf(w, "%s\tno\t-\t-\t-\n", table)
			continue
		case err != nil:
			fmt.Fprintf(os.Stderr, "query %s: %v\n", table, err)
			os.Exit(2)
		}

		fmt.Fprintf(w, "%s\tyes\t%s\t%s\t%d\n", table, yesno(enabled), yesno(forced), policies)
		if !enabled || !forced || policies == 0 {
			unprotected++
		}
	}
	w.Flush()

	if unprotected > 0 {
		fmt.Fprintf(os.Stderr, "%d table(s) without full row-level security\n", unprotected)
		os.Exit(1)
	}
}

func yesno(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
