package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/tradeforge/controlplane/internal/domain"
	"github.com/tradeforge/controlplane/internal/store"
)

func (s *Store) CreateOrchestratorRun(ctx context.Context, r domain.OrchestratorRun) (domain.OrchestratorRun, error) {
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now
	r.SchemaVersion = domain.SchemaVersion

	doc, err := json.Marshal(r)
	if err != nil {
		return domain.OrchestratorRun{}, err
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO orchestrator_runs (id, tenant_id, doc, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, r.ID, r.TenantID, doc, r.CreatedAt, r.UpdatedAt); err != nil {
		return domain.OrchestratorRun{}, err
	}
	return r, nil
}

func (s *Store) UpdateOrchestratorRun(ctx context.Context, r domain.OrchestratorRun) (domain.OrchestratorRun, error) {
	existing, err := s.GetOrchestratorRun(ctx, r.TenantID, r.ID)
	if err != nil {
		return domain.OrchestratorRun{}, err
	}
	r.CreatedAt = existing.CreatedAt
	r.UpdatedAt = time.Now().UTC()
	r.SchemaVersion = domain.SchemaVersion

	doc, err := json.Marshal(r)
	if err != nil {
		return domain.OrchestratorRun{}, err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE orchestrator_runs SET doc = $3, updated_at = $4
		WHERE id = $1 AND tenant_id = $2
	`, r.ID, r.TenantID, doc, r.UpdatedAt)
	if err != nil {
		return domain.OrchestratorRun{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return domain.OrchestratorRun{}, store.ErrNotFound
	}
	return r, nil
}

func (s *Store) GetOrchestratorRun(ctx context.Context, tenantID, id string) (domain.OrchestratorRun, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT doc FROM orchestrator_runs WHERE id = $1 AND tenant_id = $2
	`, id, tenantID).Scan(&doc)
	if err != nil {
		return domain.OrchestratorRun{}, notFoundOnNoRows(err)
	}
	var r domain.OrchestratorRun
	if err := json.Unmarshal(doc, &r); err != nil {
		return domain.OrchestratorRun{}, err
	}
	return r, nil
}

func (s *Store) AppendDriftEvent(ctx context.Context, e domain.DriftEvent) (domain.DriftEvent, error) {
	e.CreatedAt = time.Now().UTC()
	e.SchemaVersion = domain.SchemaVersion

	doc, err := json.Marshal(e)
	if err != nil {
		return domain.DriftEvent{}, err
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO drift_events (id, tenant_id, resource_type, doc, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, e.ID, e.TenantID, e.ResourceType, doc, e.CreatedAt); err != nil {
		return domain.DriftEvent{}, err
	}
	return e, nil
}

func (s *Store) ListDriftEvents(ctx context.Context, tenantID, resourceType string) ([]domain.DriftEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc FROM drift_events WHERE tenant_id = $1 AND resource_type = $2 ORDER BY created_at
	`, tenantID, resourceType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.DriftEvent, 0)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var e domain.DriftEvent
		if err := json.Unmarshal(doc, &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) GetIdempotency(ctx context.Context, scope, key string) (domain.IdempotencyEntry, bool, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT doc FROM idempotency_entries WHERE scope = $1 AND key = $2
	`, scope, key).Scan(&doc)
	if err == sql.ErrNoRows {
		return domain.IdempotencyEntry{}, false, nil
	}
	if err != nil {
		return domain.IdempotencyEntry{}, false, err
	}
	var e domain.IdempotencyEntry
	if err := json.Unmarshal(doc, &e); err != nil {
		return domain.IdempotencyEntry{}, false, err
	}
	return e, true, nil
}

// PutIdempotencyIfAbsent performs the compare-and-set insert via an
// INSERT ... ON CONFLICT DO NOTHING, then re-reads to learn whether this
// call actually won the race.
func (s *Store) PutIdempotencyIfAbsent(ctx context.Context, e domain.IdempotencyEntry) (domain.IdempotencyEntry, bool, error) {
	e.CreatedAt = time.Now().UTC()
	doc, err := json.Marshal(e)
	if err != nil {
		return domain.IdempotencyEntry{}, false, err
	}
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO idempotency_entries (scope, key, doc, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (scope, key) DO NOTHING
	`, e.Scope, e.Key, doc, e.CreatedAt)
	if err != nil {
		return domain.IdempotencyEntry{}, false, err
	}
	if rows, _ := result.RowsAffected(); rows == 1 {
		return e, true, nil
	}
	existing, found, err := s.GetIdempotency(ctx, e.Scope, e.Key)
	if err != nil {
		return domain.IdempotencyEntry{}, false, err
	}
	if !found {
		return domain.IdempotencyEntry{}, false, store.ErrNotFound
	}
	return existing, false, nil
}
