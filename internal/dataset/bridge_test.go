package dataset

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeforge/controlplane/internal/domain"
	"github.com/tradeforge/controlplane/internal/platform/apierrors"
	"github.com/tradeforge/controlplane/internal/store/memory"
)

type failingPublisher struct{ err error }

func (f failingPublisher) Publish(_ context.Context, _ string) (string, error) { return "", f.err }

func TestBridge_ResolveDatasetRefs_UnknownDatasetFailsNotPublished(t *testing.T) {
	st := memory.New()
	b := New(st, StaticPublisher{})

	_, err := b.ResolveDatasetRefs(context.Background(), "t1", []string{"dataset-does-not-exist"})
	require.Error(t, err)
	apiErr, ok := apierrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.CodeDatasetNotPublished, apiErr.Code)
}

func TestBridge_ResolveDatasetRefs_UnpublishedDatasetFails(t *testing.T) {
	st := memory.New()
	b := New(st, StaticPublisher{})
	ctx := context.Background()

	_, err := st.CreateDataset(ctx, domain.Dataset{ID: "ds1", TenantID: "t1", Status: domain.DatasetUploaded})
	require.NoError(t, err)

	_, err = b.ResolveDatasetRefs(ctx, "t1", []string{"ds1"})
	require.Error(t, err)
}

func TestBridge_ResolveDatasetRefs_AllPublishedReturnsProviderIDs(t *testing.T) {
	st := memory.New()
	b := New(st, StaticPublisher{})
	ctx := context.Background()

	_, err := st.CreateDataset(ctx, domain.Dataset{ID: "ds1", TenantID: "t1", Status: domain.DatasetPublished, ProviderDataID: "lona-symbol-ds1"})
	require.NoError(t, err)

	ids, err := b.ResolveDatasetRefs(ctx, "t1", []string{"ds1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"lona-symbol-ds1"}, ids)
}

func TestBridge_EnsurePublished_UnknownDatasetFailsNotFound(t *testing.T) {
	st := memory.New()
	b := New(st, StaticPublisher{})

	_, err := b.EnsurePublished(context.Background(), "t1", "missing")
	require.Error(t, err)
	apiErr, ok := apierrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.CodeDatasetNotFound, apiErr.Code)
}

func TestBridge_EnsurePublished_AllocatesProviderID(t *testing.T) {
	st := memory.New()
	b := New(st, StaticPublisher{})
	ctx := context.Background()

	_, err := st.CreateDataset(ctx, domain.Dataset{ID: "ds1", TenantID: "t1", Status: domain.DatasetValidated})
	require.NoError(t, err)

	providerID, err := b.EnsurePublished(ctx, "t1", "ds1")
	require.NoError(t, err)
	assert.Equal(t, "lona-symbol-ds1", providerID)

	updated, err := st.GetDataset(ctx, "t1", "ds1")
	require.NoError(t, err)
	assert.Equal(t, domain.DatasetPublished, updated.Status)
}

func TestBridge_EnsurePublished_PublishFailureMarksDatasetFailed(t *testing.T) {
	st := memory.New()
	b := New(st, failingPublisher{err: errors.New("provider unavailable")})
	ctx := context.Background()

	_, err := st.CreateDataset(ctx, domain.Dataset{ID: "ds1", TenantID: "t1", Status: domain.DatasetValidated})
	require.NoError(t, err)

	_, err = b.EnsurePublished(ctx, "t1", "ds1")
	require.Error(t, err)
	apiErr, ok := apierrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.CodeDatasetPublishFailed, apiErr.Code)

	updated, getErr := st.GetDataset(ctx, "t1", "ds1")
	require.NoError(t, getErr)
	assert.Equal(t, domain.DatasetPublishFailed, updated.Status)
}
