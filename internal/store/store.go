// Package store defines the State Store abstraction: the single owner of
// every persisted entity, guarding concurrent mutation and tenant isolation.
// internal/store/memory provides the reference in-memory implementation;
// internal/store/postgres an optional durable one behind the same interface.
package store

import (
	"context"
	"errors"

	"github.com/tradeforge/controlplane/internal/domain"
)

// ErrNotFound is returned by any Get when the record is absent or belongs to
// a different tenant than the one requesting it.
var ErrNotFound = errors.New("store: not found")

// Store is the full repository surface the domain services depend on. A
// single implementation backs the whole application; tenant scoping is
// enforced by every Get/List method rejecting cross-tenant access as if the
// record did not exist.
type Store interface {
	NextID(ctx context.Context, prefix string) (string, error)

	CreateStrategy(ctx context.Context, s domain.Strategy) (domain.Strategy, error)
	GetStrategy(ctx context.Context, tenantID, id string) (domain.Strategy, error)
	ListStrategies(ctx context.Context, tenantID string) ([]domain.Strategy, error)

	CreateBacktest(ctx context.Context, b domain.Backtest) (domain.Backtest, error)
	UpdateBacktest(ctx context.Context, b domain.Backtest) (domain.Backtest, error)
	GetBacktest(ctx context.Context, tenantID, id string) (domain.Backtest, error)
	ListBacktestsByStrategy(ctx context.Context, tenantID, strategyID string) ([]domain.Backtest, error)

	CreateDeployment(ctx context.Context, d domain.Deployment) (domain.Deployment, error)
	UpdateDeployment(ctx context.Context, d domain.Deployment) (domain.Deployment, error)
	GetDeployment(ctx context.Context, tenantID, id string) (domain.Deployment, error)
	ListDeployments(ctx context.Context, tenantID string) ([]domain.Deployment, error)
	ListActiveDeployments(ctx context.Context, tenantID string) ([]domain.Deployment, error)

	CreateOrder(ctx context.Context, o domain.Order) (domain.Order, error)
	UpdateOrder(ctx context.Context, o domain.Order) (domain.Order, error)
	GetOrder(ctx context.Context, tenantID, id string) (domain.Order, error)
	ListOrders(ctx context.Context, tenantID string) ([]domain.Order, error)
	ListActiveOrders(ctx context.Context, tenantID string) ([]domain.Order, error)

	GetPortfolio(ctx context.Context, tenantID string, mode domain.DeploymentMode) (domain.Portfolio, error)
	PutPortfolio(ctx context.Context, p domain.Portfolio) (domain.Portfolio, error)

	CreateDataset(ctx context.Context, d domain.Dataset) (domain.Dataset, error)
	UpdateDataset(ctx context.Context, d domain.Dataset) (domain.Dataset, error)
	GetDataset(ctx context.Context, tenantID, id string) (domain.Dataset, error)

	GetRiskPolicy(ctx context.Context, tenantID string) (domain.RiskPolicy, error)
	PutRiskPolicy(ctx context.Context, p domain.RiskPolicy) (domain.RiskPolicy, error)

	AppendRiskAudit(ctx context.Context, r domain.RiskAuditRecord) (domain.RiskAuditRecord, error)
	ListRiskAudit(ctx context.Context, tenantID string) ([]domain.RiskAuditRecord, error)

	CreateOrchestratorRun(ctx context.Context, r domain.OrchestratorRun) (domain.OrchestratorRun, error)
	UpdateOrchestratorRun(ctx context.Context, r domain.OrchestratorRun) (domain.OrchestratorRun, error)
	GetOrchestratorRun(ctx context.Context, tenantID, id string) (domain.OrchestratorRun, error)

	AppendDriftEvent(ctx context.Context, e domain.DriftEvent) (domain.DriftEvent, error)
	ListDriftEvents(ctx context.Context, tenantID, resourceType string) ([]domain.DriftEvent, error)

	// Idempotency: GetIdempotency returns (entry, found). PutIdempotencyIfAbsent
	// performs the compare-and-set insert and reports whether this call won
	// the race (false means another entry already exists for scope+key).
	GetIdempotency(ctx context.Context, scope, key string) (domain.IdempotencyEntry, bool, error)
	PutIdempotencyIfAbsent(ctx context.Context, e domain.IdempotencyEntry) (domain.IdempotencyEntry, bool, error)

	CreatePattern(ctx context.Context, p domain.Pattern) (domain.Pattern, error)
	ListPatterns(ctx context.Context, tenantID string) ([]domain.Pattern, error)

	PutMarketRegime(ctx context.Context, r domain.MarketRegime) (domain.MarketRegime, error)
	GetOpenMarketRegime(ctx context.Context, tenantID, asset string) (domain.MarketRegime, bool, error)

	AppendLesson(ctx context.Context, l domain.Lesson) (domain.Lesson, error)
	ListLessons(ctx context.Context, tenantID string) ([]domain.Lesson, error)

	// HasIngested / MarkIngested implement the idempotent-ingestion
	// compare-and-set: MarkIngested reports false when the fingerprint was
	// already recorded, meaning the caller must suppress the write.
	HasIngested(ctx context.Context, scope, fingerprint string) (bool, error)
	MarkIngested(ctx context.Context, scope, fingerprint string) (bool, error)

	GetResearchBudget(ctx context.Context, tenantID string) (domain.ResearchProviderBudget, bool, error)
	PutResearchBudget(ctx context.Context, b domain.ResearchProviderBudget) (domain.ResearchProviderBudget, error)
	AppendResearchBudgetEvent(ctx context.Context, e domain.ResearchBudgetEvent) (domain.ResearchBudgetEvent, error)

	CreateDatasetExport(ctx context.Context, e domain.DatasetExport) (domain.DatasetExport, error)
	GetDatasetExport(ctx context.Context, tenantID, id string) (domain.DatasetExport, error)

	// ListTenantIDs returns every tenant the store has observed, in no
	// particular order. The background reconciliation sweep uses it to find
	// the work it needs to do without a tenant ever calling the HTTP surface.
	ListTenantIDs(ctx context.Context) ([]string, error)
}
