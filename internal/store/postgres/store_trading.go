package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/tradeforge/controlplane/internal/domain"
	"github.com/tradeforge/controlplane/internal/store"
)

// Strategies -----------------------------------------------------------------

func (s *Store) CreateStrategy(ctx context.Context, st domain.Strategy) (domain.Strategy, error) {
	now := time.Now().UTC()
	st.CreatedAt = now
	st.UpdatedAt = now
	st.SchemaVersion = domain.SchemaVersion

	doc, err := json.Marshal(st)
	if err != nil {
		return domain.Strategy{}, err
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO strategies (id, tenant_id, doc, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, st.ID, st.TenantID, doc, st.CreatedAt, st.UpdatedAt); err != nil {
		return domain.Strategy{}, err
	}
	if err := s.registerTenant(ctx, st.TenantID); err != nil {
		return domain.Strategy{}, err
	}
	return st, nil
}

func (s *Store) GetStrategy(ctx context.Context, tenantID, id string) (domain.Strategy, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT doc FROM strategies WHERE id = $1 AND tenant_id = $2
	`, id, tenantID).Scan(&doc)
	if err != nil {
		return domain.Strategy{}, notFoundOnNoRows(err)
	}
	var st domain.Strategy
	if err := json.Unmarshal(doc, &st); err != nil {
		return domain.Strategy{}, err
	}
	return st, nil
}

func (s *Store) ListStrategies(ctx context.Context, tenantID string) ([]domain.Strategy, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc FROM strategies WHERE tenant_id = $1 ORDER BY created_at
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Strategy, 0)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var st domain.Strategy
		if err := json.Unmarshal(doc, &st); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// Backtests -------------------------------------------------------------------

func (s *Store) CreateBacktest(ctx context.Context, b domain.Backtest) (domain.Backtest, error) {
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	b.SchemaVersion = domain.SchemaVersion

	doc, err := json.Marshal(b)
	if err != nil {
		return domain.Backtest{}, err
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO backtests (id, tenant_id, strategy_id, doc, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, b.ID, b.TenantID, b.StrategyID, doc, b.CreatedAt, b.UpdatedAt); err != nil {
		return domain.Backtest{}, err
	}
	return b, nil
}

func (s *Store) UpdateBacktest(ctx context.Context, b domain.Backtest) (domain.Backtest, error) {
	existing, err := s.GetBacktest(ctx, b.TenantID, b.ID)
	if err != nil {
		return domain.Backtest{}, err
	}
	b.CreatedAt = existing.CreatedAt
	b.UpdatedAt = time.Now().UTC()
	b.SchemaVersion = domain.SchemaVersion

	doc, err := json.Marshal(b)
	if err != nil {
		return domain.Backtest{}, err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE backtests SET doc = $3, updated_at = $4
		WHERE id = $1 AND tenant_id = $2
	`, b.ID, b.TenantID, doc, b.UpdatedAt)
	if err != nil {
		return domain.Backtest{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return domain.Backtest{}, store.ErrNotFound
	}
	return b, nil
}

func (s *Store) GetBacktest(ctx context.Context, tenantID, id string) (domain.Backtest, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT doc FROM backtests WHERE id = $1 AND tenant_id = $2
	`, id, tenantID).Scan(&doc)
	if err != nil {
		return domain.Backtest{}, notFoundOnNoRows(err)
	}
	var b domain.Backtest
	if err := json.Unmarshal(doc, &b); err != nil {
		return domain.Backtest{}, err
	}
	return b, nil
}

func (s *Store) ListBacktestsByStrategy(ctx context.Context, tenantID, strategyID string) ([]domain.Backtest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc FROM backtests WHERE tenant_id = $1 AND strategy_id = $2 ORDER BY created_at
	`, tenantID, strategyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Backtest, 0)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var b domain.Backtest
		if err := json.Unmarshal(doc, &b); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Deployments -------------------------------------------------------------------

func (s *Store) CreateDeployment(ctx context.Context, d domain.Deployment) (domain.Deployment, error) {
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now
	d.SchemaVersion = domain.SchemaVersion

	doc, err := json.Marshal(d)
	if err != nil {
		return domain.Deployment{}, err
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO deployments (id, tenant_id, status, provider_ref_id, doc, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, d.ID, d.TenantID, string(d.Status), d.ProviderRefID, doc, d.CreatedAt, d.UpdatedAt); err != nil {
		return domain.Deployment{}, err
	}
	if err := s.registerTenant(ctx, d.TenantID); err != nil {
		return domain.Deployment{}, err
	}
	return d, nil
}

func (s *Store) UpdateDeployment(ctx context.Context, d domain.Deployment) (domain.Deployment, error) {
	existing, err := s.GetDeployment(ctx, d.TenantID, d.ID)
	if err != nil {
		return domain.Deployment{}, err
	}
	d.CreatedAt = existing.CreatedAt
	d.UpdatedAt = time.Now().UTC()
	d.SchemaVersion = domain.SchemaVersion

	doc, err := json.Marshal(d)
	if err != nil {
		return domain.Deployment{}, err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE deployments SET status = $3, provider_ref_id = $4, doc = $5, updated_at = $6
		WHERE id = $1 AND tenant_id = $2
	`, d.ID, d.TenantID, string(d.Status), d.ProviderRefID, doc, d.UpdatedAt)
	if err != nil {
		return domain.Deployment{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return domain.Deployment{}, store.ErrNotFound
	}
	return d, nil
}

func (s *Store) GetDeployment(ctx context.Context, tenantID, id string) (domain.Deployment, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT doc FROM deployments WHERE id = $1 AND tenant_id = $2
	`, id, tenantID).Scan(&doc)
	if err != nil {
		return domain.Deployment{}, notFoundOnNoRows(err)
	}
	var d domain.Deployment
	if err := json.Unmarshal(doc, &d); err != nil {
		return domain.Deployment{}, err
	}
	return d, nil
}

func (s *Store) ListDeployments(ctx context.Context, tenantID string) ([]domain.Deployment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc FROM deployments WHERE tenant_id = $1 ORDER BY created_at
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Deployment, 0)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var d domain.Deployment
		if err := json.Unmarshal(doc, &d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) ListActiveDeployments(ctx context.Context, tenantID string) ([]domain.Deployment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc FROM deployments
		WHERE tenant_id = $1 AND status IN ($2, $3, $4)
		ORDER BY created_at
	`, tenantID, string(domain.DeploymentQueued), string(domain.DeploymentRunning), string(domain.DeploymentPaused))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Deployment, 0)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var d domain.Deployment
		if err := json.Unmarshal(doc, &d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Orders -------------------------------------------------------------------

func (s *Store) CreateOrder(ctx context.Context, o domain.Order) (domain.Order, error) {
	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now
	o.SchemaVersion = domain.SchemaVersion

	doc, err := json.Marshal(o)
	if err != nil {
		return domain.Order{}, err
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (id, tenant_id, status, provider_order_id, doc, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, o.ID, o.TenantID, string(o.Status), o.ProviderOrderID, doc, o.CreatedAt, o.UpdatedAt); err != nil {
		return domain.Order{}, err
	}
	if err := s.registerTenant(ctx, o.TenantID); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (s *Store) UpdateOrder(ctx context.Context, o domain.Order) (domain.Order, error) {
	existing, err := s.GetOrder(ctx, o.TenantID, o.ID)
	if err != nil {
		return domain.Order{}, err
	}
	o.CreatedAt = existing.CreatedAt
	o.UpdatedAt = time.Now().UTC()
	o.SchemaVersion = domain.SchemaVersion

	doc, err := json.Marshal(o)
	if err != nil {
		return domain.Order{}, err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE orders SET status = $3, provider_order_id = $4, doc = $5, updated_at = $6
		WHERE id = $1 AND tenant_id = $2
	`, o.ID, o.TenantID, string(o.Status), o.ProviderOrderID, doc, o.UpdatedAt)
	if err != nil {
		return domain.Order{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return domain.Order{}, store.ErrNotFound
	}
	return o, nil
}

func (s *Store) GetOrder(ctx context.Context, tenantID, id string) (domain.Order, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT doc FROM orders WHERE id = $1 AND tenant_id = $2
	`, id, tenantID).Scan(&doc)
	if err != nil {
		return domain.Order{}, notFoundOnNoRows(err)
	}
	var o domain.Order
	if err := json.Unmarshal(doc, &o); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (s *Store) ListOrders(ctx context.Context, tenantID string) ([]domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc FROM orders WHERE tenant_id = $1 ORDER BY created_at
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Order, 0)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var o domain.Order
		if err := json.Unmarshal(doc, &o); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) ListActiveOrders(ctx context.Context, tenantID string) ([]domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc FROM orders WHERE tenant_id = $1 AND status = $2 ORDER BY created_at
	`, tenantID, string(domain.OrderPending))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Order, 0)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var o domain.Order
		if err := json.Unmarshal(doc, &o); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Portfolios -------------------------------------------------------------------

func (s *Store) GetPortfolio(ctx context.Context, tenantID string, mode domain.DeploymentMode) (domain.Portfolio, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT doc FROM portfolios WHERE tenant_id = $1 AND mode = $2
	`, tenantID, string(mode)).Scan(&doc)
	if err == sql.ErrNoRows {
		return domain.Portfolio{TenantID: tenantID, Mode: mode, SchemaVersion: domain.SchemaVersion}, nil
	}
	if err != nil {
		return domain.Portfolio{}, err
	}
	var p domain.Portfolio
	if err := json.Unmarshal(doc, &p); err != nil {
		return domain.Portfolio{}, err
	}
	return p, nil
}

func (s *Store) PutPortfolio(ctx context.Context, p domain.Portfolio) (domain.Portfolio, error) {
	p.UpdatedAt = time.Now().UTC()
	p.SchemaVersion = domain.SchemaVersion

	doc, err := json.Marshal(p)
	if err != nil {
		return domain.Portfolio{}, err
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO portfolios (tenant_id, mode, doc, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, mode) DO UPDATE SET doc = $3, updated_at = $4
	`, p.TenantID, string(p.Mode), doc, p.UpdatedAt); err != nil {
		return domain.Portfolio{}, err
	}
	return p, nil
}
