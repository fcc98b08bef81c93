package risk

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeforge/controlplane/internal/domain"
	"github.com/tradeforge/controlplane/internal/platform/apierrors"
	"github.com/tradeforge/controlplane/internal/store/memory"
)

func TestValidatePolicy_RejectsPositionLimitAboveTotal(t *testing.T) {
	p := DefaultPolicy("t1")
	p.Limits.MaxPositionNotionalUsd = p.Limits.MaxNotionalUsd + 1
	err := ValidatePolicy(p)
	require.Error(t, err)
}

func TestValidatePolicy_RejectsEmptyActionsOnBreach(t *testing.T) {
	p := DefaultPolicy("t1")
	p.ActionsOnBreach = nil
	require.Error(t, ValidatePolicy(p))
}

func TestEngine_OrderNotionalExceedsPositionLimit(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	policy := DefaultPolicy("t1")
	policy.Limits.MaxPositionNotionalUsd = 1000
	_, err := s.PutRiskPolicy(ctx, policy)
	require.NoError(t, err)

	e := NewEngine(s)
	price := 64000.0
	err = e.EnsureOrderAllowed(ctx, "t1", "u1", "r1", OrderRequest{Symbol: "BTCUSDT", Quantity: 1, Price: &price})
	require.Error(t, err)
	apiErr, ok := apierrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.CodeRiskLimitBreach, apiErr.Code)

	audits, err := s.ListRiskAudit(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, audits, 1)
	assert.Equal(t, domain.RiskDecisionBlock, audits[0].Decision)
}

func TestEngine_OrderBlockedWhenReferencePriceUnresolved(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	policy := DefaultPolicy("t1")
	_, err := s.PutRiskPolicy(ctx, policy)
	require.NoError(t, err)

	e := NewEngine(s)
	err = e.EnsureOrderAllowed(ctx, "t1", "u1", "r1", OrderRequest{Symbol: "ZZZZ", Quantity: 1})
	require.Error(t, err)
	apiErr, ok := apierrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.CodeRiskLimitBreach, apiErr.Code)

	audits, err := s.ListRiskAudit(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, audits, 1)
	assert.Equal(t, "reference_price_unresolved", audits[0].OutcomeCode)
}

func TestEngine_KillSwitchBlocksSideEffects(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	policy := DefaultPolicy("t1")
	policy.KillSwitch.Triggered = true
	_, err := s.PutRiskPolicy(ctx, policy)
	require.NoError(t, err)

	e := NewEngine(s)
	err = e.EnsureDeploymentAllowed(ctx, "t1", "u1", "r1", 1000)
	require.Error(t, err)
	apiErr, ok := apierrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.CodeRiskKillSwitchActive, apiErr.Code)
}

func TestEngine_EvaluateKillSwitch_TriggersOnDrawdownBreach(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	policy := DefaultPolicy("t1")
	policy.Limits.MaxDrawdownPct = 5
	_, err := s.PutRiskPolicy(ctx, policy)
	require.NoError(t, err)

	e := NewEngine(s)
	pnl := -1000.0
	deployment := domain.Deployment{ID: "d1", Capital: 20000, LatestPnl: &pnl}

	triggered, updated, err := e.EvaluateKillSwitch(ctx, "t1", deployment, time.Now())
	require.NoError(t, err)
	assert.True(t, triggered)
	assert.True(t, updated.KillSwitch.Triggered)
	assert.NotNil(t, updated.KillSwitch.TriggeredAt)
}

func TestEngine_EvaluateKillSwitch_NoOpBelowThreshold(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	policy := DefaultPolicy("t1")
	policy.Limits.MaxDrawdownPct = 50
	_, err := s.PutRiskPolicy(ctx, policy)
	require.NoError(t, err)

	e := NewEngine(s)
	pnl := -100.0
	deployment := domain.Deployment{ID: "d1", Capital: 20000, LatestPnl: &pnl}
	triggered, _, err := e.EvaluateKillSwitch(ctx, "t1", deployment, time.Now())
	require.NoError(t, err)
	assert.False(t, triggered)
}
