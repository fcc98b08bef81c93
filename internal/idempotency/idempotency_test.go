package idempotency

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeforge/controlplane/internal/platform/apierrors"
	"github.com/tradeforge/controlplane/internal/store/memory"
)

func TestCache_MissThenReplay(t *testing.T) {
	c := New(memory.New())
	ctx := context.Background()
	payload := map[string]interface{}{"strategyId": "s", "mode": "paper", "capital": 12000}

	res, err := c.Lookup(ctx, "execution_commands_deployments", "k1", payload)
	require.NoError(t, err)
	assert.False(t, res.Replayed)

	require.NoError(t, c.Store(ctx, "execution_commands_deployments", "k1", payload, 202, []byte(`{"id":"d1"}`)))

	res, err = c.Lookup(ctx, "execution_commands_deployments", "k1", payload)
	require.NoError(t, err)
	assert.True(t, res.Replayed)
	assert.Equal(t, 202, res.Status)
	assert.Equal(t, []byte(`{"id":"d1"}`), res.Body)
}

func TestCache_DifferentPayloadConflicts(t *testing.T) {
	c := New(memory.New())
	ctx := context.Background()

	require.NoError(t, c.Store(ctx, "execution_commands_deployments", "k1",
		map[string]interface{}{"capital": 12000}, 202, []byte(`{}`)))

	_, err := c.Lookup(ctx, "execution_commands_deployments", "k1", map[string]interface{}{"capital": 13000})
	require.Error(t, err)
	apiErr, ok := apierrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.CodeIdempotencyConflict, apiErr.Code)
}

func TestFingerprint_KeyOrderIndependent(t *testing.T) {
	fp1, err := Fingerprint(map[string]interface{}{"a": 1, "b": 2})
	require.NoError(t, err)
	fp2, err := Fingerprint(map[string]interface{}{"b": 2, "a": 1})
	require.NoError(t, err)
	assert.Equal(t, fp1, fp2)
}
