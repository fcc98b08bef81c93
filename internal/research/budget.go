// Package research implements the Research Provider Budget Guard: a
// fail-closed spend reservation gate in front of market-scan provider calls.
package research

import (
	"context"
	"math"

	"github.com/tradeforge/controlplane/internal/domain"
	"github.com/tradeforge/controlplane/internal/platform/apierrors"
	"github.com/tradeforge/controlplane/internal/platform/metrics"
	"github.com/tradeforge/controlplane/internal/store"
)

// Guard evaluates and reserves spend against a per-tenant research provider
// budget before a market-scan call is allowed to proceed.
type Guard struct {
	store store.Store
}

// New builds a budget Guard.
func New(s store.Store) *Guard {
	return &Guard{store: s}
}

// Reserve evaluates tenantID's budget against estimatedCostUsd, reserving
// the spend and recording a budget event on success. It fails closed on any
// malformed policy or budget breach without reserving spend or calling the
// provider.
func (g *Guard) Reserve(ctx context.Context, tenantID string, estimatedCostUsd float64) error {
	budget, found, err := g.store.GetResearchBudget(ctx, tenantID)
	if err != nil {
		return apierrors.Internal("failed to load research provider budget", err)
	}
	if !found {
		return apierrors.ResearchBudgetInvalid(&BudgetInvalidError{Reason: "no research provider budget configured for tenant"})
	}
	if invalid := validate(budget, estimatedCostUsd); invalid != nil {
		_, _ = g.record(ctx, tenantID, "blocked", "invalid_policy", budget.SpentCostUsd)
		return apierrors.ResearchBudgetInvalid(invalid)
	}

	if estimatedCostUsd > budget.MaxPerRequestCostUsd {
		g.blocked(ctx, tenantID, "per_request_limit_breached", budget.SpentCostUsd)
		return apierrors.ResearchBudgetExceeded("per_request_limit_breached")
	}
	if budget.SpentCostUsd+estimatedCostUsd > budget.MaxTotalCostUsd {
		g.blocked(ctx, tenantID, "total_budget_exhausted", budget.SpentCostUsd)
		return apierrors.ResearchBudgetExceeded("total_budget_exhausted")
	}

	budget.SpentCostUsd += estimatedCostUsd
	budget.EstimatedMarketScanCostUsd = estimatedCostUsd
	if _, err := g.store.PutResearchBudget(ctx, budget); err != nil {
		return apierrors.Internal("failed to persist reserved research budget spend", err)
	}
	if _, err := g.record(ctx, tenantID, "reserved", "within_budget", budget.SpentCostUsd); err != nil {
		return apierrors.Internal("failed to record research budget event", err)
	}
	metrics.RecordResearchBudgetEvent("reserved")
	return nil
}

func (g *Guard) blocked(ctx context.Context, tenantID, reason string, spentAfter float64) {
	_, _ = g.record(ctx, tenantID, "blocked", reason, spentAfter)
	metrics.RecordResearchBudgetEvent("blocked")
}

func (g *Guard) record(ctx context.Context, tenantID, decision, reason string, spentAfter float64) (domain.ResearchBudgetEvent, error) {
	return g.store.AppendResearchBudgetEvent(ctx, domain.ResearchBudgetEvent{
		Decision:      decision,
		Reason:        reason,
		SpentAfterUsd: spentAfter,
		TenantID:      tenantID,
	})
}

func validate(b domain.ResearchProviderBudget, estimatedCostUsd float64) error {
	if !finite(b.MaxTotalCostUsd) || !finite(b.MaxPerRequestCostUsd) || !finite(b.SpentCostUsd) || !finite(estimatedCostUsd) {
		return &BudgetInvalidError{Reason: "budget fields must be finite numeric values"}
	}
	if b.MaxTotalCostUsd < 0 || b.MaxPerRequestCostUsd < 0 || b.SpentCostUsd < 0 || estimatedCostUsd < 0 {
		return &BudgetInvalidError{Reason: "budget fields must be non-negative"}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// BudgetInvalidError reports a malformed research provider budget policy.
type BudgetInvalidError struct {
	Reason string
}

func (e *BudgetInvalidError) Error() string { return "research: " + e.Reason }
