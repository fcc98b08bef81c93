package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeforge/controlplane/internal/domain"
	"github.com/tradeforge/controlplane/internal/execution"
	"github.com/tradeforge/controlplane/internal/platform/logger"
	"github.com/tradeforge/controlplane/internal/store/memory"
)

type stubAdapter struct {
	execution.LiveEngineAdapter
	deploymentStatus execution.ProviderDeploymentStatus
	orderStatus      execution.ProviderOrderStatus
	calls            int
}

func (s *stubAdapter) GetDeploymentStatus(_ context.Context, _ string) (execution.ProviderDeploymentStatus, error) {
	s.calls++
	return s.deploymentStatus, nil
}

func (s *stubAdapter) GetOrderStatus(_ context.Context, _ string) (execution.ProviderOrderStatus, error) {
	s.calls++
	return s.orderStatus, nil
}

func pnl(v float64) *float64 { return &v }

func TestService_ReconcileDeployments_RecordsExactlyOneDriftEventOnChange(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	d, err := st.CreateDeployment(ctx, domain.Deployment{
		ID: "dep-1", TenantID: "t1", Status: domain.DeploymentQueued, ProviderRefID: "prov-1",
	})
	require.NoError(t, err)
	_ = d

	adapter := &stubAdapter{deploymentStatus: execution.ProviderDeploymentStatus{Status: "running", LatestPnl: pnl(42)}}
	svc := New(st, adapter, logger.NewDefault("reconcile-test"), time.Minute)

	require.NoError(t, svc.ReconcileDeployments(ctx, "t1", "u1"))

	events, err := st.ListDriftEvents(ctx, "t1", "deployment")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "queued", events[0].PreviousState)
	assert.Equal(t, "running", events[0].Resolution)

	updated, err := st.GetDeployment(ctx, "t1", "dep-1")
	require.NoError(t, err)
	assert.Equal(t, domain.DeploymentRunning, updated.Status)
	require.NotNil(t, updated.LatestPnl)
	assert.Equal(t, 42.0, *updated.LatestPnl)
}

func TestService_ReconcileDeployments_NoChangeNoDrift(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	_, err := st.CreateDeployment(ctx, domain.Deployment{
		ID: "dep-1", TenantID: "t1", Status: domain.DeploymentRunning, ProviderRefID: "prov-1", LatestPnl: pnl(10),
	})
	require.NoError(t, err)

	adapter := &stubAdapter{deploymentStatus: execution.ProviderDeploymentStatus{Status: "running", LatestPnl: pnl(10)}}
	svc := New(st, adapter, logger.NewDefault("reconcile-test"), time.Minute)

	require.NoError(t, svc.ReconcileDeployments(ctx, "t1", "u1"))

	events, err := st.ListDriftEvents(ctx, "t1", "deployment")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestService_ReconcileDeployments_ThrottledWithinMinInterval(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	_, err := st.CreateDeployment(ctx, domain.Deployment{
		ID: "dep-1", TenantID: "t1", Status: domain.DeploymentQueued, ProviderRefID: "prov-1",
	})
	require.NoError(t, err)

	adapter := &stubAdapter{deploymentStatus: execution.ProviderDeploymentStatus{Status: "running"}}
	svc := New(st, adapter, logger.NewDefault("reconcile-test"), time.Hour)

	require.NoError(t, svc.ReconcileDeployments(ctx, "t1", "u1"))
	require.NoError(t, svc.ReconcileDeployments(ctx, "t1", "u1"))

	assert.Equal(t, 1, adapter.calls, "second pass within minInterval must not call the provider")
}

func TestService_ReconcileDeployments_RunningConvergesToStoppedWithOneDrift(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	_, err := st.CreateDeployment(ctx, domain.Deployment{
		ID: "dep-1", TenantID: "t1", Status: domain.DeploymentRunning, ProviderRefID: "prov-1",
	})
	require.NoError(t, err)

	adapter := &stubAdapter{deploymentStatus: execution.ProviderDeploymentStatus{Status: "stopped"}}
	svc := New(st, adapter, logger.NewDefault("reconcile-test"), time.Minute)

	require.NoError(t, svc.ReconcileDeployments(ctx, "t1", "u1"))

	updated, err := st.GetDeployment(ctx, "t1", "dep-1")
	require.NoError(t, err)
	assert.Equal(t, domain.DeploymentStopped, updated.Status)

	events, err := st.ListDriftEvents(ctx, "t1", "deployment")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "running", events[0].PreviousState)
	assert.Equal(t, "stopped", events[0].Resolution)
}

func TestService_ReconcileDeployments_PausedConvergesToStoppedWithOneDrift(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	_, err := st.CreateDeployment(ctx, domain.Deployment{
		ID: "dep-1", TenantID: "t1", Status: domain.DeploymentPaused, ProviderRefID: "prov-1",
	})
	require.NoError(t, err)

	adapter := &stubAdapter{deploymentStatus: execution.ProviderDeploymentStatus{Status: "stopped"}}
	svc := New(st, adapter, logger.NewDefault("reconcile-test"), time.Minute)

	require.NoError(t, svc.ReconcileDeployments(ctx, "t1", "u1"))

	updated, err := st.GetDeployment(ctx, "t1", "dep-1")
	require.NoError(t, err)
	assert.Equal(t, domain.DeploymentStopped, updated.Status)

	events, err := st.ListDriftEvents(ctx, "t1", "deployment")
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestService_ReconcileOrders_StillPendingRecordsNoDrift(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	_, err := st.CreateOrder(ctx, domain.Order{
		ID: "ord-1", TenantID: "t1", Status: domain.OrderPending, ProviderOrderID: "prov-ord-1",
	})
	require.NoError(t, err)

	adapter := &stubAdapter{orderStatus: execution.ProviderOrderStatus{Status: "pending"}}
	svc := New(st, adapter, logger.NewDefault("reconcile-test"), time.Minute)

	require.NoError(t, svc.ReconcileOrders(ctx, "t1", "u1"))

	updated, err := st.GetOrder(ctx, "t1", "ord-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPending, updated.Status)

	events, err := st.ListDriftEvents(ctx, "t1", "order")
	require.NoError(t, err)
	assert.Empty(t, events, "a genuinely still-pending order must not be flipped to failed")
}

func TestService_ReconcileOrders_TerminalTransitionRecordsDrift(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	_, err := st.CreateOrder(ctx, domain.Order{
		ID: "ord-1", TenantID: "t1", Status: domain.OrderPending, ProviderOrderID: "prov-ord-1",
	})
	require.NoError(t, err)

	adapter := &stubAdapter{orderStatus: execution.ProviderOrderStatus{Status: "filled"}}
	svc := New(st, adapter, logger.NewDefault("reconcile-test"), time.Minute)

	require.NoError(t, svc.ReconcileOrders(ctx, "t1", "u1"))

	updated, err := st.GetOrder(ctx, "t1", "ord-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderFilled, updated.Status)

	events, err := st.ListDriftEvents(ctx, "t1", "order")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "filled", events[0].Resolution)
}
