package research

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeforge/controlplane/internal/domain"
	"github.com/tradeforge/controlplane/internal/platform/apierrors"
	"github.com/tradeforge/controlplane/internal/store/memory"
)

func TestGuard_Reserve_WithinBudgetReservesSpend(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	_, err := st.PutResearchBudget(ctx, domain.ResearchProviderBudget{
		TenantID: "t1", MaxTotalCostUsd: 100, MaxPerRequestCostUsd: 10, SpentCostUsd: 0,
	})
	require.NoError(t, err)

	g := New(st)
	require.NoError(t, g.Reserve(ctx, "t1", 5))

	budget, found, err := st.GetResearchBudget(ctx, "t1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 5.0, budget.SpentCostUsd)
}

func TestGuard_Reserve_PerRequestLimitBreached(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	_, err := st.PutResearchBudget(ctx, domain.ResearchProviderBudget{
		TenantID: "t1", MaxTotalCostUsd: 100, MaxPerRequestCostUsd: 10, SpentCostUsd: 0,
	})
	require.NoError(t, err)

	g := New(st)
	err = g.Reserve(ctx, "t1", 11)
	require.Error(t, err)
	apiErr, ok := apierrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.CodeResearchBudgetExceeded, apiErr.Code)
	assert.Equal(t, "per_request_limit_breached", apiErr.Details["reason"])

	budget, _, err := st.GetResearchBudget(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 0.0, budget.SpentCostUsd, "a blocked decision must never mutate spentCostUsd")
}

func TestGuard_Reserve_TotalBudgetExhausted(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	_, err := st.PutResearchBudget(ctx, domain.ResearchProviderBudget{
		TenantID: "t1", MaxTotalCostUsd: 10, MaxPerRequestCostUsd: 10, SpentCostUsd: 8,
	})
	require.NoError(t, err)

	g := New(st)
	err = g.Reserve(ctx, "t1", 5)
	require.Error(t, err)
	apiErr, ok := apierrors.As(err)
	require.True(t, ok)
	assert.Equal(t, "total_budget_exhausted", apiErr.Details["reason"])
}

func TestGuard_Reserve_MissingBudgetFailsClosed(t *testing.T) {
	st := memory.New()
	g := New(st)

	err := g.Reserve(context.Background(), "t1", 1)
	require.Error(t, err)
	apiErr, ok := apierrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.CodeResearchBudgetInvalid, apiErr.Code)
}

func TestGuard_Reserve_NonFiniteCostFailsClosedWithoutReserving(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	_, err := st.PutResearchBudget(ctx, domain.ResearchProviderBudget{
		TenantID: "t1", MaxTotalCostUsd: 100, MaxPerRequestCostUsd: 10, SpentCostUsd: 0,
	})
	require.NoError(t, err)

	g := New(st)
	err = g.Reserve(ctx, "t1", math.NaN())
	require.Error(t, err)
	apiErr, ok := apierrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.CodeResearchBudgetInvalid, apiErr.Code)
}
