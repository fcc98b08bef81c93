package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/tradeforge/controlplane/internal/domain"
	"github.com/tradeforge/controlplane/internal/store"
)

func (s *Store) CreateDataset(ctx context.Context, d domain.Dataset) (domain.Dataset, error) {
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now
	d.SchemaVersion = domain.SchemaVersion

	doc, err := json.Marshal(d)
	if err != nil {
		return domain.Dataset{}, err
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO datasets (id, tenant_id, doc, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, d.ID, d.TenantID, doc, d.CreatedAt, d.UpdatedAt); err != nil {
		return domain.Dataset{}, err
	}
	if err := s.registerTenant(ctx, d.TenantID); err != nil {
		return domain.Dataset{}, err
	}
	return d, nil
}

func (s *Store) UpdateDataset(ctx context.Context, d domain.Dataset) (domain.Dataset, error) {
	existing, err := s.GetDataset(ctx, d.TenantID, d.ID)
	if err != nil {
		return domain.Dataset{}, err
	}
	d.CreatedAt = existing.CreatedAt
	d.UpdatedAt = time.Now().UTC()
	d.SchemaVersion = domain.SchemaVersion

	doc, err := json.Marshal(d)
	if err != nil {
		return domain.Dataset{}, err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE datasets SET doc = $3, updated_at = $4
		WHERE id = $1 AND tenant_id = $2
	`, d.ID, d.TenantID, doc, d.UpdatedAt)
	if err != nil {
		return domain.Dataset{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return domain.Dataset{}, store.ErrNotFound
	}
	return d, nil
}

func (s *Store) GetDataset(ctx context.Context, tenantID, id string) (domain.Dataset, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT doc FROM datasets WHERE id = $1 AND tenant_id = $2
	`, id, tenantID).Scan(&doc)
	if err != nil {
		return domain.Dataset{}, notFoundOnNoRows(err)
	}
	var d domain.Dataset
	if err := json.Unmarshal(doc, &d); err != nil {
		return domain.Dataset{}, err
	}
	return d, nil
}

func (s *Store) CreateDatasetExport(ctx context.Context, e domain.DatasetExport) (domain.DatasetExport, error) {
	e.CreatedAt = time.Now().UTC()
	e.SchemaVersion = domain.SchemaVersion

	doc, err := json.Marshal(e)
	if err != nil {
		return domain.DatasetExport{}, err
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO dataset_exports (id, tenant_id, doc, created_at)
		VALUES ($1, $2, $3, $4)
	`, e.ID, e.TenantID, doc, e.CreatedAt); err != nil {
		return domain.DatasetExport{}, err
	}
	return e, nil
}

func (s *Store) GetDatasetExport(ctx context.Context, tenantID, id string) (domain.DatasetExport, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT doc FROM dataset_exports WHERE id = $1 AND tenant_id = $2
	`, id, tenantID).Scan(&doc)
	if err != nil {
		return domain.DatasetExport{}, notFoundOnNoRows(err)
	}
	var e domain.DatasetExport
	if err := json.Unmarshal(doc, &e); err != nil {
		return domain.DatasetExport{}, err
	}
	return e, nil
}
