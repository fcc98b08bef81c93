// Package postgres is the optional durable implementation of store.Store,
// backed by PostgreSQL. Every entity is persisted as an indexed identity
// column set plus a JSONB document carrying the full domain record, mirroring
// the document-plus-index-columns shape used elsewhere in this codebase's
// lineage for fast-moving schemas.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tradeforge/controlplane/internal/platform/database"
	"github.com/tradeforge/controlplane/internal/store"
)

// Store implements store.Store backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ store.Store = (*Store)(nil)

// Open connects to dsn, verifies connectivity, and applies the embedded
// schema migrations before returning a ready Store.
func Open(dsn string) (*Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	db, err := database.Open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := applyMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return New(db), nil
}

// New wraps an already-open, already-migrated database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// NextID allocates a monotonic, prefix-tagged identifier from a shared
// database sequence, so ids stay unique across process restarts.
func (s *Store) NextID(ctx context.Context, prefix string) (string, error) {
	var id int64
	if err := s.db.QueryRowContext(ctx, `SELECT nextval('controlplane_id_seq')`).Scan(&id); err != nil {
		return "", fmt.Errorf("allocate id: %w", err)
	}
	if prefix == "" {
		return fmt.Sprintf("%d", id), nil
	}
	return fmt.Sprintf("%s-%d", prefix, id), nil
}

// registerTenant records tenantID as known to the store, so background
// reconciliation can discover it without a prior HTTP request.
func (s *Store) registerTenant(ctx context.Context, tenantID string) error {
	if tenantID == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tenants (tenant_id) VALUES ($1)
		ON CONFLICT (tenant_id) DO NOTHING
	`, tenantID)
	return err
}

// notFoundOnNoRows normalizes sql.ErrNoRows to store.ErrNotFound so callers
// never need to know which implementation they are talking to.
func notFoundOnNoRows(err error) error {
	if err == sql.ErrNoRows {
		return store.ErrNotFound
	}
	return err
}

// ListTenantIDs returns every tenant that has created at least one
// strategy, deployment, order, or dataset.
func (s *Store) ListTenantIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tenant_id FROM tenants ORDER BY tenant_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var tenantID string
		if err := rows.Scan(&tenantID); err != nil {
			return nil, err
		}
		out = append(out, tenantID)
	}
	return out, rows.Err()
}
