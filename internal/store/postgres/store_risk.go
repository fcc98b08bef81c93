package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/tradeforge/controlplane/internal/domain"
)

func (s *Store) GetRiskPolicy(ctx context.Context, tenantID string) (domain.RiskPolicy, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT doc FROM risk_policies WHERE tenant_id = $1
	`, tenantID).Scan(&doc)
	if err != nil {
		return domain.RiskPolicy{}, notFoundOnNoRows(err)
	}
	var p domain.RiskPolicy
	if err := json.Unmarshal(doc, &p); err != nil {
		return domain.RiskPolicy{}, err
	}
	return p, nil
}

func (s *Store) PutRiskPolicy(ctx context.Context, p domain.RiskPolicy) (domain.RiskPolicy, error) {
	doc, err := json.Marshal(p)
	if err != nil {
		return domain.RiskPolicy{}, err
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO risk_policies (tenant_id, doc) VALUES ($1, $2)
		ON CONFLICT (tenant_id) DO UPDATE SET doc = $2
	`, p.TenantID, doc); err != nil {
		return domain.RiskPolicy{}, err
	}
	return p, nil
}

func (s *Store) AppendRiskAudit(ctx context.Context, r domain.RiskAuditRecord) (domain.RiskAuditRecord, error) {
	if r.ID == "" {
		id, err := s.NextID(ctx, "audit")
		if err != nil {
			return domain.RiskAuditRecord{}, err
		}
		r.ID = id
	}
	r.CreatedAt = time.Now().UTC()
	r.SchemaVersion = domain.SchemaVersion

	doc, err := json.Marshal(r)
	if err != nil {
		return domain.RiskAuditRecord{}, err
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO risk_audit_records (id, tenant_id, doc, created_at)
		VALUES ($1, $2, $3, $4)
	`, r.ID, r.TenantID, doc, r.CreatedAt); err != nil {
		return domain.RiskAuditRecord{}, err
	}
	return r, nil
}

func (s *Store) ListRiskAudit(ctx context.Context, tenantID string) ([]domain.RiskAuditRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc FROM risk_audit_records WHERE tenant_id = $1 ORDER BY created_at
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.RiskAuditRecord, 0)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var r domain.RiskAuditRecord
		if err := json.Unmarshal(doc, &r); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
