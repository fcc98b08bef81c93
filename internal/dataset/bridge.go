// Package dataset implements the Dataset Bridge: resolving platform dataset
// ids to provider data ids and driving datasets through the publish
// lifecycle.
package dataset

import (
	"context"
	"fmt"

	"github.com/tradeforge/controlplane/internal/domain"
	"github.com/tradeforge/controlplane/internal/platform/apierrors"
	"github.com/tradeforge/controlplane/internal/store"
)

// Publisher is the boundary to the external dataset-publishing provider. The
// in-memory reference implementation always succeeds; a real deployment
// would swap in an HTTP-backed implementation the same way execution's
// LiveEngineAdapter is swapped.
type Publisher interface {
	Publish(ctx context.Context, datasetID string) (providerDataID string, err error)
}

// StaticPublisher allocates deterministic provider ids and never fails; it
// is the reference Publisher used until an external provider is wired in.
type StaticPublisher struct{}

func (StaticPublisher) Publish(_ context.Context, datasetID string) (string, error) {
	return fmt.Sprintf("lona-symbol-%s", datasetID), nil
}

// Bridge resolves dataset references and drives the publish lifecycle.
type Bridge struct {
	store     store.Store
	publisher Publisher
}

// New builds a Bridge backed by s, publishing through publisher.
func New(s store.Store, publisher Publisher) *Bridge {
	return &Bridge{store: s, publisher: publisher}
}

// ResolveDatasetRefs returns the provider data id for every datasetID, only
// if all of them are already published. Any dataset that is unknown or not
// yet published fails the whole call with DATASET_NOT_PUBLISHED.
func (b *Bridge) ResolveDatasetRefs(ctx context.Context, tenantID string, datasetIDs []string) ([]string, error) {
	providerIDs := make([]string, 0, len(datasetIDs))
	for _, id := range datasetIDs {
		d, err := b.store.GetDataset(ctx, tenantID, id)
		if err != nil || d.Status != domain.DatasetPublished || d.ProviderDataID == "" {
			return nil, apierrors.DatasetNotPublished(id)
		}
		providerIDs = append(providerIDs, d.ProviderDataID)
	}
	return providerIDs, nil
}

// EnsurePublished publishes datasetID if it isn't already, returning its
// provider data id. A publish failure transitions the dataset to
// publish_failed and propagates DATASET_PUBLISH_FAILED unchanged.
func (b *Bridge) EnsurePublished(ctx context.Context, tenantID, datasetID string) (string, error) {
	d, err := b.store.GetDataset(ctx, tenantID, datasetID)
	if err != nil {
		return "", apierrors.DatasetNotFound(datasetID)
	}
	if d.Status == domain.DatasetPublished && d.ProviderDataID != "" {
		return d.ProviderDataID, nil
	}

	providerDataID, publishErr := b.publisher.Publish(ctx, datasetID)
	if publishErr != nil {
		d.Status = domain.DatasetPublishFailed
		if _, updateErr := b.store.UpdateDataset(ctx, d); updateErr != nil {
			return "", apierrors.Internal("failed to record dataset publish failure", updateErr)
		}
		return "", apierrors.DatasetPublishFailed(datasetID, publishErr)
	}

	d.Status = domain.DatasetPublished
	d.ProviderDataID = providerDataID
	if _, err := b.store.UpdateDataset(ctx, d); err != nil {
		return "", apierrors.Internal("failed to record dataset publish success", err)
	}
	return providerDataID, nil
}
