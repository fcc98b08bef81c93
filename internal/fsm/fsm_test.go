package fsm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeforge/controlplane/internal/domain"
)

func TestOrchestrator_Transition_Allowed(t *testing.T) {
	next, err := Orchestrator.Transition(domain.RunReceived, domain.RunQueued)
	require.NoError(t, err)
	assert.Equal(t, domain.RunQueued, next)
}

func TestOrchestrator_TerminalStatesAreAbsorbing(t *testing.T) {
	for _, terminal := range []domain.OrchestratorState{domain.RunCompleted, domain.RunFailed, domain.RunCancelled} {
		_, err := Orchestrator.Transition(terminal, domain.RunQueued)
		assert.Error(t, err, "expected transition out of terminal state %s to fail", terminal)
	}
}

func TestOrchestrator_InvalidTransition(t *testing.T) {
	_, err := Orchestrator.Transition(domain.RunReceived, domain.RunCompleted)
	require.Error(t, err)
	var transitionErr *TransitionError
	assert.ErrorAs(t, err, &transitionErr)
}

func TestDeployment_ProviderStatusMapping(t *testing.T) {
	tests := []struct {
		raw  string
		want domain.DeploymentStatus
	}{
		{"active", domain.DeploymentRunning},
		{"running", domain.DeploymentRunning},
		{"halting", domain.DeploymentStopping},
		{"terminated", domain.DeploymentStopped},
		{"error", domain.DeploymentFailed},
		{"some-unknown-status", domain.DeploymentFailed},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MapProviderDeploymentStatus(tt.raw), tt.raw)
	}
}

func TestDeployment_ApplyProviderStatus_UnreachableTargetPreservesCurrent(t *testing.T) {
	// stopping may only move to stopped or failed; a provider report of
	// "running" maps to a target that is neither reachable nor failed, so
	// the current state is preserved.
	got := ApplyProviderDeploymentStatus(domain.DeploymentStopping, "running")
	assert.Equal(t, domain.DeploymentStopping, got)
}

func TestDeployment_ApplyProviderStatus_ReachableTargetApplies(t *testing.T) {
	got := ApplyProviderDeploymentStatus(domain.DeploymentRunning, "stopping")
	assert.Equal(t, domain.DeploymentStopping, got)
}

func TestDeployment_Transition_ActiveToStoppedAllowed(t *testing.T) {
	for _, from := range []domain.DeploymentStatus{domain.DeploymentRunning, domain.DeploymentPaused} {
		next, err := Deployment.Transition(from, domain.DeploymentStopped)
		require.NoError(t, err, "expected %s -> stopped to be allowed", from)
		assert.Equal(t, domain.DeploymentStopped, next)
	}
}

func TestDeployment_ApplyProviderStatus_RunningConvergesOnProviderStopped(t *testing.T) {
	got := ApplyProviderDeploymentStatus(domain.DeploymentRunning, "stopped")
	assert.Equal(t, domain.DeploymentStopped, got)
}

func TestDeployment_ApplyProviderStatus_PausedConvergesOnProviderStopped(t *testing.T) {
	got := ApplyProviderDeploymentStatus(domain.DeploymentPaused, "terminated")
	assert.Equal(t, domain.DeploymentStopped, got)
}

func TestOrder_ProviderStatusMapping(t *testing.T) {
	tests := []struct {
		raw  string
		want domain.OrderStatus
	}{
		{"filled", domain.OrderFilled},
		{"executed", domain.OrderFilled},
		{"rejected", domain.OrderFailed},
		{"error", domain.OrderFailed},
		{"cancelled", domain.OrderCancelled},
		{"canceled", domain.OrderCancelled},
		{"pending", domain.OrderPending},
		{"open", domain.OrderPending},
		{"working", domain.OrderPending},
		{"partially_filled", domain.OrderPending},
		{"garbage", domain.OrderFailed},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MapProviderOrderStatus(tt.raw), tt.raw)
	}
}

func TestOrder_ApplyProviderStatus_StillPendingIsNoOp(t *testing.T) {
	got := ApplyProviderOrderStatus(domain.OrderPending, "open")
	assert.Equal(t, domain.OrderPending, got, "a still-open provider status must not flip a pending order to failed")
}

func TestOrder_TerminalIsImmutable(t *testing.T) {
	got := ApplyProviderOrderStatus(domain.OrderFilled, "cancelled")
	assert.Equal(t, domain.OrderFilled, got, "terminal order state must not move")
}
