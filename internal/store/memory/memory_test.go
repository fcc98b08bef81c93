package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeforge/controlplane/internal/domain"
	"github.com/tradeforge/controlplane/internal/store"
)

func TestStore_TenantIsolation(t *testing.T) {
	s := New()
	ctx := context.Background()

	id, err := s.NextID(ctx, "strategy")
	require.NoError(t, err)
	_, err = s.CreateStrategy(ctx, domain.Strategy{ID: id, TenantID: "tenant-a", UserID: "user-1", Name: "s1"})
	require.NoError(t, err)

	_, err = s.GetStrategy(ctx, "tenant-b", id)
	assert.ErrorIs(t, err, store.ErrNotFound)

	got, err := s.GetStrategy(ctx, "tenant-a", id)
	require.NoError(t, err)
	assert.Equal(t, "s1", got.Name)
}

func TestStore_IdempotencyCompareAndSet(t *testing.T) {
	s := New()
	ctx := context.Background()

	entry := domain.IdempotencyEntry{Scope: "execution_commands_deployments", Key: "k1", PayloadFingerprint: "fp1"}
	stored, won, err := s.PutIdempotencyIfAbsent(ctx, entry)
	require.NoError(t, err)
	assert.True(t, won)
	assert.Equal(t, "fp1", stored.PayloadFingerprint)

	conflict := domain.IdempotencyEntry{Scope: "execution_commands_deployments", Key: "k1", PayloadFingerprint: "fp2"}
	existing, won, err := s.PutIdempotencyIfAbsent(ctx, conflict)
	require.NoError(t, err)
	assert.False(t, won)
	assert.Equal(t, "fp1", existing.PayloadFingerprint)
}

func TestStore_ListTenantIDsCollectsDistinctTenants(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.CreateStrategy(ctx, domain.Strategy{ID: "s1", TenantID: "tenant-a", UserID: "user-1", Name: "s1"})
	require.NoError(t, err)
	_, err = s.CreateDeployment(ctx, domain.Deployment{ID: "d1", TenantID: "tenant-a", Status: domain.DeploymentRunning})
	require.NoError(t, err)
	_, err = s.CreateOrder(ctx, domain.Order{ID: "o1", TenantID: "tenant-b", Status: domain.OrderPending})
	require.NoError(t, err)

	tenants, err := s.ListTenantIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"tenant-a", "tenant-b"}, tenants)
}

func TestStore_ListActiveDeploymentsFiltersByStatus(t *testing.T) {
	s := New()
	ctx := context.Background()

	running, _ := s.CreateDeployment(ctx, domain.Deployment{ID: "d1", TenantID: "t1", Status: domain.DeploymentRunning})
	_, _ = s.CreateDeployment(ctx, domain.Deployment{ID: "d2", TenantID: "t1", Status: domain.DeploymentStopped})

	active, err := s.ListActiveDeployments(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, running.ID, active[0].ID)
}
