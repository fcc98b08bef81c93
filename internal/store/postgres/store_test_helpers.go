package postgres

import (
	"context"
	"os"
	"testing"
)

// newTestStore connects to TEST_POSTGRES_DSN, applies migrations, and resets
// every table before returning a ready Store. Tests using it are skipped
// unless a real postgres instance is configured.
func newTestStore(t *testing.T) (*Store, context.Context) {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	store, err := Open(dsn)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := resetTables(store); err != nil {
		t.Fatalf("reset tables: %v", err)
	}

	t.Cleanup(func() {
		_ = resetTables(store)
		_ = store.Close()
	})

	return store, context.Background()
}

func resetTables(s *Store) error {
	_, err := s.db.Exec(`TRUNCATE TABLE
		tenants, strategies, backtests, deployments, orders, portfolios,
		datasets, dataset_exports, risk_policies, risk_audit_records,
		orchestrator_runs, drift_events, idempotency_entries, patterns,
		market_regimes, lessons, ingested_fingerprints, research_budgets,
		research_budget_events
		RESTART IDENTITY CASCADE`)
	return err
}
