package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/tradeforge/controlplane/internal/domain"
)

func (s *Store) CreatePattern(ctx context.Context, p domain.Pattern) (domain.Pattern, error) {
	p.CreatedAt = time.Now().UTC()
	p.SchemaVersion = domain.SchemaVersion

	doc, err := json.Marshal(p)
	if err != nil {
		return domain.Pattern{}, err
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO patterns (id, tenant_id, doc, created_at)
		VALUES ($1, $2, $3, $4)
	`, p.ID, p.TenantID, doc, p.CreatedAt); err != nil {
		return domain.Pattern{}, err
	}
	return p, nil
}

func (s *Store) ListPatterns(ctx context.Context, tenantID string) ([]domain.Pattern, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc FROM patterns WHERE tenant_id = $1 ORDER BY created_at
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Pattern, 0)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var p domain.Pattern
		if err := json.Unmarshal(doc, &p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) PutMarketRegime(ctx context.Context, r domain.MarketRegime) (domain.MarketRegime, error) {
	r.SchemaVersion = domain.SchemaVersion

	doc, err := json.Marshal(r)
	if err != nil {
		return domain.MarketRegime{}, err
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO market_regimes (tenant_id, asset, end_at, doc)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, asset) DO UPDATE SET end_at = $3, doc = $4
	`, r.TenantID, r.Asset, r.EndAt, doc); err != nil {
		return domain.MarketRegime{}, err
	}
	return r, nil
}

func (s *Store) GetOpenMarketRegime(ctx context.Context, tenantID, asset string) (domain.MarketRegime, bool, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT doc FROM market_regimes WHERE tenant_id = $1 AND asset = $2 AND end_at IS NULL
	`, tenantID, asset).Scan(&doc)
	if err == sql.ErrNoRows {
		return domain.MarketRegime{}, false, nil
	}
	if err != nil {
		return domain.MarketRegime{}, false, err
	}
	var r domain.MarketRegime
	if err := json.Unmarshal(doc, &r); err != nil {
		return domain.MarketRegime{}, false, err
	}
	return r, true, nil
}

func (s *Store) AppendLesson(ctx context.Context, l domain.Lesson) (domain.Lesson, error) {
	l.CreatedAt = time.Now().UTC()
	l.SchemaVersion = domain.SchemaVersion

	doc, err := json.Marshal(l)
	if err != nil {
		return domain.Lesson{}, err
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO lessons (id, tenant_id, doc, created_at)
		VALUES ($1, $2, $3, $4)
	`, l.ID, l.TenantID, doc, l.CreatedAt); err != nil {
		return domain.Lesson{}, err
	}
	return l, nil
}

func (s *Store) ListLessons(ctx context.Context, tenantID string) ([]domain.Lesson, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc FROM lessons WHERE tenant_id = $1 ORDER BY created_at
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Lesson, 0)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var l domain.Lesson
		if err := json.Unmarshal(doc, &l); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) HasIngested(ctx context.Context, scope, fingerprint string) (bool, error) {
	var found int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM ingested_fingerprints WHERE scope = $1 AND fingerprint = $2
	`, scope, fingerprint).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// MarkIngested performs the compare-and-set via INSERT ... ON CONFLICT DO
// NOTHING: it reports true only when this call's row was the one inserted.
func (s *Store) MarkIngested(ctx context.Context, scope, fingerprint string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO ingested_fingerprints (scope, fingerprint, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (scope, fingerprint) DO NOTHING
	`, scope, fingerprint, time.Now().UTC())
	if err != nil {
		return false, err
	}
	rows, _ := result.RowsAffected()
	return rows == 1, nil
}

func (s *Store) GetResearchBudget(ctx context.Context, tenantID string) (domain.ResearchProviderBudget, bool, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT doc FROM research_budgets WHERE tenant_id = $1
	`, tenantID).Scan(&doc)
	if err == sql.ErrNoRows {
		return domain.ResearchProviderBudget{}, false, nil
	}
	if err != nil {
		return domain.ResearchProviderBudget{}, false, err
	}
	var b domain.ResearchProviderBudget
	if err := json.Unmarshal(doc, &b); err != nil {
		return domain.ResearchProviderBudget{}, false, err
	}
	return b, true, nil
}

func (s *Store) PutResearchBudget(ctx context.Context, b domain.ResearchProviderBudget) (domain.ResearchProviderBudget, error) {
	b.SchemaVersion = domain.SchemaVersion

	doc, err := json.Marshal(b)
	if err != nil {
		return domain.ResearchProviderBudget{}, err
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO research_budgets (tenant_id, doc) VALUES ($1, $2)
		ON CONFLICT (tenant_id) DO UPDATE SET doc = $2
	`, b.TenantID, doc); err != nil {
		return domain.ResearchProviderBudget{}, err
	}
	return b, nil
}

func (s *Store) AppendResearchBudgetEvent(ctx context.Context, e domain.ResearchBudgetEvent) (domain.ResearchBudgetEvent, error) {
	if e.ID == "" {
		id, err := s.NextID(ctx, "research-event")
		if err != nil {
			return domain.ResearchBudgetEvent{}, err
		}
		e.ID = id
	}
	e.CreatedAt = time.Now().UTC()
	e.SchemaVersion = domain.SchemaVersion

	doc, err := json.Marshal(e)
	if err != nil {
		return domain.ResearchBudgetEvent{}, err
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO research_budget_events (id, tenant_id, doc, created_at)
		VALUES ($1, $2, $3, $4)
	`, e.ID, e.TenantID, doc, e.CreatedAt); err != nil {
		return domain.ResearchBudgetEvent{}, err
	}
	return e, nil
}
