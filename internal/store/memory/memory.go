// Package memory is the reference in-memory implementation of store.Store.
// It is safe for concurrent use: one mutex guards all entity maps, and every
// read clones its result so callers can never mutate store-owned state.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tradeforge/controlplane/internal/domain"
	"github.com/tradeforge/controlplane/internal/store"
)

// Store implements store.Store entirely in process memory.
type Store struct {
	mu     sync.RWMutex
	nextID int64

	strategies  map[string]domain.Strategy
	backtests   map[string]domain.Backtest
	deployments map[string]domain.Deployment
	orders      map[string]domain.Order
	portfolios  map[string]domain.Portfolio // key: tenantID + ":" + mode
	datasets    map[string]domain.Dataset
	riskPolicy  map[string]domain.RiskPolicy // key: tenantID
	riskAudit   map[string][]domain.RiskAuditRecord
	runs        map[string]domain.OrchestratorRun
	drift       map[string][]domain.DriftEvent     // key: tenantID + ":" + resourceType
	idempotency map[string]domain.IdempotencyEntry // key: scope + ":" + key

	patterns       map[string]domain.Pattern
	regimes        map[string]domain.MarketRegime // key: tenantID + ":" + asset, open regime only
	lessons        map[string][]domain.Lesson     // key: tenantID
	ingested       map[string]bool                // key: scope + ":" + fingerprint
	researchBudget map[string]domain.ResearchProviderBudget // key: tenantID
	budgetEvents   map[string][]domain.ResearchBudgetEvent  // key: tenantID
	exports        map[string]domain.DatasetExport

	tenants map[string]struct{}
}

var _ store.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{
		nextID:      1,
		strategies:  make(map[string]domain.Strategy),
		backtests:   make(map[string]domain.Backtest),
		deployments: make(map[string]domain.Deployment),
		orders:      make(map[string]domain.Order),
		portfolios:  make(map[string]domain.Portfolio),
		datasets:    make(map[string]domain.Dataset),
		riskPolicy:  make(map[string]domain.RiskPolicy),
		riskAudit:   make(map[string][]domain.RiskAuditRecord),
		runs:        make(map[string]domain.OrchestratorRun),
		drift:       make(map[string][]domain.DriftEvent),
		idempotency: make(map[string]domain.IdempotencyEntry),

		patterns:       make(map[string]domain.Pattern),
		regimes:        make(map[string]domain.MarketRegime),
		lessons:        make(map[string][]domain.Lesson),
		ingested:       make(map[string]bool),
		researchBudget: make(map[string]domain.ResearchProviderBudget),
		budgetEvents:   make(map[string][]domain.ResearchBudgetEvent),
		exports:        make(map[string]domain.DatasetExport),

		tenants: make(map[string]struct{}),
	}
}

// registerTenant records tenantID as known to the store. Callers must already
// hold s.mu for writing.
func (s *Store) registerTenant(tenantID string) {
	if tenantID == "" {
		return
	}
	s.tenants[tenantID] = struct{}{}
}

// ListTenantIDs returns every tenant that has created at least one
// strategy, deployment, order, or dataset.
func (s *Store) ListTenantIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.tenants))
	for t := range s.tenants {
		out = append(out, t)
	}
	return out, nil
}

// NextID allocates a monotonic, prefix-tagged identifier.
func (s *Store) NextID(_ context.Context, prefix string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	if prefix == "" {
		return fmt.Sprintf("%d", id), nil
	}
	return fmt.Sprintf("%s-%d", prefix, id), nil
}

func portfolioKey(tenantID string, mode domain.DeploymentMode) string {
	return tenantID + ":" + string(mode)
}

func driftKey(tenantID, resourceType string) string {
	return tenantID + ":" + resourceType
}

func idempotencyKey(scope, key string) string {
	return scope + ":" + key
}

// Strategies -----------------------------------------------------------------

func (s *Store) CreateStrategy(_ context.Context, st domain.Strategy) (domain.Strategy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	st.CreatedAt = now
	st.UpdatedAt = now
	st.SchemaVersion = domain.SchemaVersion
	s.strategies[st.ID] = st
	s.registerTenant(st.TenantID)
	return st, nil
}

func (s *Store) GetStrategy(_ context.Context, tenantID, id string) (domain.Strategy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.strategies[id]
	if !ok || st.TenantID != tenantID {
		return domain.Strategy{}, store.ErrNotFound
	}
	return st, nil
}

func (s *Store) ListStrategies(_ context.Context, tenantID string) ([]domain.Strategy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Strategy, 0)
	for _, st := range s.strategies {
		if st.TenantID == tenantID {
			out = append(out, st)
		}
	}
	return out, nil
}

// Backtests -------------------------------------------------------------------

func (s *Store) CreateBacktest(_ context.Context, b domain.Backtest) (domain.Backtest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	b.SchemaVersion = domain.SchemaVersion
	s.backtests[b.ID] = b
	return b, nil
}

func (s *Store) UpdateBacktest(_ context.Context, b domain.Backtest) (domain.Backtest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	original, ok := s.backtests[b.ID]
	if !ok || original.TenantID != b.TenantID {
		return domain.Backtest{}, store.ErrNotFound
	}
	b.CreatedAt = original.CreatedAt
	b.UpdatedAt = time.Now().UTC()
	b.SchemaVersion = domain.SchemaVersion
	s.backtests[b.ID] = b
	return b, nil
}

func (s *Store) GetBacktest(_ context.Context, tenantID, id string) (domain.Backtest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.backtests[id]
	if !ok || b.TenantID != tenantID {
		return domain.Backtest{}, store.ErrNotFound
	}
	return b, nil
}

func (s *Store) ListBacktestsByStrategy(_ context.Context, tenantID, strategyID string) ([]domain.Backtest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Backtest, 0)
	for _, b := range s.backtests {
		if b.TenantID == tenantID && b.StrategyID == strategyID {
			out = append(out, b)
		}
	}
	return out, nil
}

// Deployments -------------------------------------------------------------------

func (s *Store) CreateDeployment(_ context.Context, d domain.Deployment) (domain.Deployment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now
	d.SchemaVersion = domain.SchemaVersion
	s.deployments[d.ID] = d
	s.registerTenant(d.TenantID)
	return d, nil
}

func (s *Store) UpdateDeployment(_ context.Context, d domain.Deployment) (domain.Deployment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	original, ok := s.deployments[d.ID]
	if !ok || original.TenantID != d.TenantID {
		return domain.Deployment{}, store.ErrNotFound
	}
	d.CreatedAt = original.CreatedAt
	d.UpdatedAt = time.Now().UTC()
	d.SchemaVersion = domain.SchemaVersion
	s.deployments[d.ID] = d
	return d, nil
}

func (s *Store) GetDeployment(_ context.Context, tenantID, id string) (domain.Deployment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.deployments[id]
	if !ok || d.TenantID != tenantID {
		return domain.Deployment{}, store.ErrNotFound
	}
	return d, nil
}

func (s *Store) ListDeployments(_ context.Context, tenantID string) ([]domain.Deployment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Deployment, 0)
	for _, d := range s.deployments {
		if d.TenantID == tenantID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *Store) ListActiveDeployments(_ context.Context, tenantID string) ([]domain.Deployment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Deployment, 0)
	for _, d := range s.deployments {
		if d.TenantID == tenantID && (d.Status == domain.DeploymentQueued || d.Status == domain.DeploymentRunning || d.Status == domain.DeploymentPaused) {
			out = append(out, d)
		}
	}
	return out, nil
}

// Orders -------------------------------------------------------------------

func (s *Store) CreateOrder(_ context.Context, o domain.Order) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now
	o.SchemaVersion = domain.SchemaVersion
	s.orders[o.ID] = o
	s.registerTenant(o.TenantID)
	return o, nil
}

func (s *Store) UpdateOrder(_ context.Context, o domain.Order) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	original, ok := s.orders[o.ID]
	if !ok || original.TenantID != o.TenantID {
		return domain.Order{}, store.ErrNotFound
	}
	o.CreatedAt = original.CreatedAt
	o.UpdatedAt = time.Now().UTC()
	o.SchemaVersion = domain.SchemaVersion
	s.orders[o.ID] = o
	return o, nil
}

func (s *Store) GetOrder(_ context.Context, tenantID, id string) (domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok || o.TenantID != tenantID {
		return domain.Order{}, store.ErrNotFound
	}
	return o, nil
}

func (s *Store) ListOrders(_ context.Context, tenantID string) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Order, 0)
	for _, o := range s.orders {
		if o.TenantID == tenantID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *Store) ListActiveOrders(_ context.Context, tenantID string) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Order, 0)
	for _, o := range s.orders {
		if o.TenantID == tenantID && o.Status == domain.OrderPending {
			out = append(out, o)
		}
	}
	return out, nil
}

// Portfolios -------------------------------------------------------------------

func (s *Store) GetPortfolio(_ context.Context, tenantID string, mode domain.DeploymentMode) (domain.Portfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.portfolios[portfolioKey(tenantID, mode)]
	if !ok {
		return domain.Portfolio{TenantID: tenantID, Mode: mode, SchemaVersion: domain.SchemaVersion}, nil
	}
	return p, nil
}

func (s *Store) PutPortfolio(_ context.Context, p domain.Portfolio) (domain.Portfolio, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.UpdatedAt = time.Now().UTC()
	p.SchemaVersion = domain.SchemaVersion
	s.portfolios[portfolioKey(p.TenantID, p.Mode)] = p
	return p, nil
}

// Datasets -------------------------------------------------------------------

func (s *Store) CreateDataset(_ context.Context, d domain.Dataset) (domain.Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now
	d.SchemaVersion = domain.SchemaVersion
	s.datasets[d.ID] = d
	s.registerTenant(d.TenantID)
	return d, nil
}

func (s *Store) UpdateDataset(_ context.Context, d domain.Dataset) (domain.Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	original, ok := s.datasets[d.ID]
	if !ok || original.TenantID != d.TenantID {
		return domain.Dataset{}, store.ErrNotFound
	}
	d.CreatedAt = original.CreatedAt
	d.UpdatedAt = time.Now().UTC()
	d.SchemaVersion = domain.SchemaVersion
	s.datasets[d.ID] = d
	return d, nil
}

func (s *Store) GetDataset(_ context.Context, tenantID, id string) (domain.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.datasets[id]
	if !ok || d.TenantID != tenantID {
		return domain.Dataset{}, store.ErrNotFound
	}
	return d, nil
}

// Risk policy -------------------------------------------------------------------

func (s *Store) GetRiskPolicy(_ context.Context, tenantID string) (domain.RiskPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.riskPolicy[tenantID]
	if !ok {
		return domain.RiskPolicy{}, store.ErrNotFound
	}
	return p, nil
}

func (s *Store) PutRiskPolicy(_ context.Context, p domain.RiskPolicy) (domain.RiskPolicy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.riskPolicy[p.TenantID] = p
	return p, nil
}

func (s *Store) AppendRiskAudit(_ context.Context, r domain.RiskAuditRecord) (domain.RiskAuditRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.CreatedAt = time.Now().UTC()
	r.SchemaVersion = domain.SchemaVersion
	s.riskAudit[r.TenantID] = append(s.riskAudit[r.TenantID], r)
	return r, nil
}

func (s *Store) ListRiskAudit(_ context.Context, tenantID string) ([]domain.RiskAuditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.RiskAuditRecord, len(s.riskAudit[tenantID]))
	copy(out, s.riskAudit[tenantID])
	return out, nil
}

// Orchestrator runs -------------------------------------------------------------------

func (s *Store) CreateOrchestratorRun(_ context.Context, r domain.OrchestratorRun) (domain.OrchestratorRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now
	r.SchemaVersion = domain.SchemaVersion
	s.runs[r.ID] = r
	return r, nil
}

func (s *Store) UpdateOrchestratorRun(_ context.Context, r domain.OrchestratorRun) (domain.OrchestratorRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	original, ok := s.runs[r.ID]
	if !ok || original.TenantID != r.TenantID {
		return domain.OrchestratorRun{}, store.ErrNotFound
	}
	r.CreatedAt = original.CreatedAt
	r.UpdatedAt = time.Now().UTC()
	r.SchemaVersion = domain.SchemaVersion
	s.runs[r.ID] = r
	return r, nil
}

func (s *Store) GetOrchestratorRun(_ context.Context, tenantID, id string) (domain.OrchestratorRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[id]
	if !ok || r.TenantID != tenantID {
		return domain.OrchestratorRun{}, store.ErrNotFound
	}
	return r, nil
}

// Drift events -------------------------------------------------------------------

func (s *Store) AppendDriftEvent(_ context.Context, e domain.DriftEvent) (domain.DriftEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.CreatedAt = time.Now().UTC()
	e.SchemaVersion = domain.SchemaVersion
	key := driftKey(e.TenantID, e.ResourceType)
	s.drift[key] = append(s.drift[key], e)
	return e, nil
}

func (s *Store) ListDriftEvents(_ context.Context, tenantID, resourceType string) ([]domain.DriftEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.drift[driftKey(tenantID, resourceType)]
	out := make([]domain.DriftEvent, len(src))
	copy(out, src)
	return out, nil
}

// Idempotency -------------------------------------------------------------------

func (s *Store) GetIdempotency(_ context.Context, scope, key string) (domain.IdempotencyEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.idempotency[idempotencyKey(scope, key)]
	return e, ok, nil
}

// PutIdempotencyIfAbsent performs the compare-and-set insert atomically under
// the store's single write lock; this is the primitive §5 requires for
// idempotency lookup+insert.
func (s *Store) PutIdempotencyIfAbsent(_ context.Context, e domain.IdempotencyEntry) (domain.IdempotencyEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := idempotencyKey(e.Scope, e.Key)
	if existing, ok := s.idempotency[k]; ok {
		return existing, false, nil
	}
	e.CreatedAt = time.Now().UTC()
	s.idempotency[k] = e
	return e, true, nil
}

// Knowledge -------------------------------------------------------------------

func regimeKey(tenantID, asset string) string { return tenantID + ":" + asset }

func (s *Store) CreatePattern(_ context.Context, p domain.Pattern) (domain.Pattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.CreatedAt = time.Now().UTC()
	p.SchemaVersion = domain.SchemaVersion
	s.patterns[p.ID] = p
	return p, nil
}

func (s *Store) ListPatterns(_ context.Context, tenantID string) ([]domain.Pattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Pattern, 0)
	for _, p := range s.patterns {
		if p.TenantID == tenantID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) PutMarketRegime(_ context.Context, r domain.MarketRegime) (domain.MarketRegime, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.SchemaVersion = domain.SchemaVersion
	s.regimes[regimeKey(r.TenantID, r.Asset)] = r
	return r, nil
}

func (s *Store) GetOpenMarketRegime(_ context.Context, tenantID, asset string) (domain.MarketRegime, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.regimes[regimeKey(tenantID, asset)]
	if !ok || r.EndAt != nil {
		return domain.MarketRegime{}, false, nil
	}
	return r, true, nil
}

func (s *Store) AppendLesson(_ context.Context, l domain.Lesson) (domain.Lesson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.CreatedAt = time.Now().UTC()
	l.SchemaVersion = domain.SchemaVersion
	s.lessons[l.TenantID] = append(s.lessons[l.TenantID], l)
	return l, nil
}

func (s *Store) ListLessons(_ context.Context, tenantID string) ([]domain.Lesson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Lesson, len(s.lessons[tenantID]))
	copy(out, s.lessons[tenantID])
	return out, nil
}

func (s *Store) HasIngested(_ context.Context, scope, fingerprint string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ingested[scope+":"+fingerprint], nil
}

// MarkIngested performs the compare-and-set: it returns true only the first
// time a given (scope,fingerprint) is marked, under the same write lock used
// by every other mutation so the check-then-set is atomic.
func (s *Store) MarkIngested(_ context.Context, scope, fingerprint string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := scope + ":" + fingerprint
	if s.ingested[k] {
		return false, nil
	}
	s.ingested[k] = true
	return true, nil
}

// Research budget -------------------------------------------------------------------

func (s *Store) GetResearchBudget(_ context.Context, tenantID string) (domain.ResearchProviderBudget, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.researchBudget[tenantID]
	return b, ok, nil
}

func (s *Store) PutResearchBudget(_ context.Context, b domain.ResearchProviderBudget) (domain.ResearchProviderBudget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b.SchemaVersion = domain.SchemaVersion
	s.researchBudget[b.TenantID] = b
	return b, nil
}

func (s *Store) AppendResearchBudgetEvent(_ context.Context, e domain.ResearchBudgetEvent) (domain.ResearchBudgetEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.CreatedAt = time.Now().UTC()
	e.SchemaVersion = domain.SchemaVersion
	s.budgetEvents[e.TenantID] = append(s.budgetEvents[e.TenantID], e)
	return e, nil
}

// Dataset exports -------------------------------------------------------------------

func (s *Store) CreateDatasetExport(_ context.Context, e domain.DatasetExport) (domain.DatasetExport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.CreatedAt = time.Now().UTC()
	e.SchemaVersion = domain.SchemaVersion
	s.exports[e.ID] = e
	return e, nil
}

func (s *Store) GetDatasetExport(_ context.Context, tenantID, id string) (domain.DatasetExport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.exports[id]
	if !ok || e.TenantID != tenantID {
		return domain.DatasetExport{}, store.ErrNotFound
	}
	return e, nil
}
