// Package reconcile polls provider state for active deployments/orders,
// applies the lifecycle FSMs, and records drift events on any observed
// change, throttled per (tenantId, resourceType).
package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/tradeforge/controlplane/internal/domain"
	"github.com/tradeforge/controlplane/internal/execution"
	"github.com/tradeforge/controlplane/internal/fsm"
	"github.com/tradeforge/controlplane/internal/platform/apierrors"
	"github.com/tradeforge/controlplane/internal/platform/logger"
	"github.com/tradeforge/controlplane/internal/platform/metrics"
	"github.com/tradeforge/controlplane/internal/store"
)

// Service drives convergence between platform and provider state.
type Service struct {
	store   store.Store
	adapter execution.LiveEngineAdapter
	log     *logger.Logger

	minInterval time.Duration
	mu          sync.Mutex
	lastRun     map[string]time.Time // key: tenantID + ":" + resourceType
}

// New builds a reconciliation Service with the given per-scope throttle.
func New(s store.Store, adapter execution.LiveEngineAdapter, log *logger.Logger, minInterval time.Duration) *Service {
	return &Service{
		store:       s,
		adapter:     adapter,
		log:         log,
		minInterval: minInterval,
		lastRun:     make(map[string]time.Time),
	}
}

func throttleKey(tenantID, resourceType string) string { return tenantID + ":" + resourceType }

// shouldRun enforces at most one pass per minInterval per (tenantId,resourceType).
func (s *Service) shouldRun(tenantID, resourceType string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := throttleKey(tenantID, resourceType)
	last, ok := s.lastRun[key]
	if ok && time.Since(last) < s.minInterval {
		return false
	}
	s.lastRun[key] = time.Now()
	return true
}

// ReconcileDeployments polls every active deployment with a providerRefId for
// tenantID, applying the deployment FSM and recording drift on change.
func (s *Service) ReconcileDeployments(ctx context.Context, tenantID, userID string) error {
	if !s.shouldRun(tenantID, "deployment") {
		return nil
	}
	deployments, err := s.store.ListActiveDeployments(ctx, tenantID)
	if err != nil {
		return apierrors.Internal("failed to list active deployments", err)
	}
	for _, d := range deployments {
		if d.ProviderRefID == "" {
			continue
		}
		if err := s.reconcileOneDeployment(ctx, tenantID, userID, d); err != nil {
			s.log.WithContext(ctx).WithField("deploymentId", d.ID).WithError(err).Warn("deployment reconciliation failed")
		}
	}
	return nil
}

func (s *Service) reconcileOneDeployment(ctx context.Context, tenantID, userID string, d domain.Deployment) error {
	status, err := s.adapter.GetDeploymentStatus(ctx, d.ProviderRefID)
	if err != nil {
		return err
	}

	nextState := fsm.ApplyProviderDeploymentStatus(d.Status, status.Status)
	changed := nextState != d.Status
	pnlChanged := status.LatestPnl != nil && (d.LatestPnl == nil || *d.LatestPnl != *status.LatestPnl)

	if !changed && !pnlChanged {
		return nil
	}

	previous := d.Status
	d.Status = nextState
	if status.LatestPnl != nil {
		d.LatestPnl = status.LatestPnl
	}
	if _, err := s.store.UpdateDeployment(ctx, d); err != nil {
		return err
	}

	metadata := map[string]interface{}{"tenantId": tenantID, "userId": userID}
	if d.LatestPnl != nil {
		metadata["latestPnl"] = *d.LatestPnl
	}
	if _, err := s.store.AppendDriftEvent(ctx, domain.DriftEvent{
		ResourceType:  "deployment",
		ResourceID:    d.ID,
		ProviderRefID: d.ProviderRefID,
		PreviousState: string(previous),
		ProviderState: status.Status,
		Resolution:    string(nextState),
		Metadata:      metadata,
		TenantID:      tenantID,
		UserID:        userID,
	}); err != nil {
		return err
	}
	metrics.RecordDrift("deployment")
	return nil
}

// ReconcileOrders polls every pending order for tenantID.
func (s *Service) ReconcileOrders(ctx context.Context, tenantID, userID string) error {
	if !s.shouldRun(tenantID, "order") {
		return nil
	}
	orders, err := s.store.ListActiveOrders(ctx, tenantID)
	if err != nil {
		return apierrors.Internal("failed to list active orders", err)
	}
	for _, o := range orders {
		if o.ProviderOrderID == "" {
			continue
		}
		if err := s.reconcileOneOrder(ctx, tenantID, userID, o); err != nil {
			s.log.WithContext(ctx).WithField("orderId", o.ID).WithError(err).Warn("order reconciliation failed")
		}
	}
	return nil
}

func (s *Service) reconcileOneOrder(ctx context.Context, tenantID, userID string, o domain.Order) error {
	status, err := s.adapter.GetOrderStatus(ctx, o.ProviderOrderID)
	if err != nil {
		return err
	}
	nextState := fsm.ApplyProviderOrderStatus(o.Status, status.Status)
	if nextState == o.Status {
		return nil
	}
	previous := o.Status
	o.Status = nextState
	if _, err := s.store.UpdateOrder(ctx, o); err != nil {
		return err
	}
	if _, err := s.store.AppendDriftEvent(ctx, domain.DriftEvent{
		ResourceType:  "order",
		ResourceID:    o.ID,
		ProviderRefID: o.ProviderOrderID,
		PreviousState: string(previous),
		ProviderState: status.Status,
		Resolution:    string(nextState),
		Metadata:      map[string]interface{}{"tenantId": tenantID, "userId": userID},
		TenantID:      tenantID,
		UserID:        userID,
	}); err != nil {
		return err
	}
	metrics.RecordDrift("order")
	return nil
}
