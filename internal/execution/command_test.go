package execution

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeforge/controlplane/internal/idempotency"
	"github.com/tradeforge/controlplane/internal/store/memory"
)

func TestCommandService_CreateDeployment_IdempotentReplay(t *testing.T) {
	adapter := &fakeAdapter{}
	svc := NewCommandService(adapter, idempotency.New(memory.New()))
	ctx := context.Background()
	req := CreateDeploymentRequest{StrategyProviderRefID: "s1", Mode: "paper", Capital: 12000}

	first, replayed, err := svc.CreateDeployment(ctx, "k1", req)
	require.NoError(t, err)
	assert.False(t, replayed)

	second, replayed, err := svc.CreateDeployment(ctx, "k1", req)
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, first.ProviderRefID, second.ProviderRefID)
	assert.Equal(t, 1, adapter.deploymentCalls, "adapter must not be called again on replay")
}

func TestCommandService_CreateDeployment_ConflictingPayload(t *testing.T) {
	adapter := &fakeAdapter{}
	svc := NewCommandService(adapter, idempotency.New(memory.New()))
	ctx := context.Background()

	_, _, err := svc.CreateDeployment(ctx, "k1", CreateDeploymentRequest{StrategyProviderRefID: "s1", Mode: "paper", Capital: 12000})
	require.NoError(t, err)

	_, _, err = svc.CreateDeployment(ctx, "k1", CreateDeploymentRequest{StrategyProviderRefID: "s1", Mode: "paper", Capital: 13000})
	require.Error(t, err)
}
