// Package knowledge implements idempotent lifecycle-event ingestion into
// lesson records and the hybrid-score pattern/lesson/regime query surface.
package knowledge

import (
	"context"
	"fmt"

	"github.com/tradeforge/controlplane/internal/domain"
	"github.com/tradeforge/controlplane/internal/idempotency"
	"github.com/tradeforge/controlplane/internal/platform/apierrors"
	"github.com/tradeforge/controlplane/internal/store"
)

const ingestionScope = "knowledge_ingestion"

// Service ingests lifecycle events into lessons and serves the query API.
type Service struct {
	store store.Store
}

// New builds a knowledge Service.
func New(s store.Store) *Service {
	return &Service{store: s}
}

// BacktestOutcomeEvent is the payload fingerprinted for idempotent ingestion
// of a backtest lifecycle event.
type BacktestOutcomeEvent struct {
	StrategyID string
	BacktestID string
	Status     domain.BacktestStatus
	Metrics    map[string]float64
	Error      string
}

// fingerprint computes the idempotency digest of v scoped by event type, so
// the same payload under two different event scopes never collides.
func fingerprint(scope string, v interface{}) (string, error) {
	return idempotency.Fingerprint(struct {
		Scope   string
		Payload interface{}
	}{Scope: scope, Payload: v})
}

// IngestBacktestOutcome writes a Lesson for a backtest completion/failure/
// status event, suppressing duplicate writes for the same fingerprint.
func (s *Service) IngestBacktestOutcome(ctx context.Context, tenantID string, ev BacktestOutcomeEvent) error {
	fp, err := fingerprint("backtest_outcome", ev)
	if err != nil {
		return apierrors.Internal("failed to fingerprint backtest outcome event", err)
	}
	won, err := s.store.MarkIngested(ctx, ingestionScope, fp)
	if err != nil {
		return apierrors.Internal("failed to record ingestion fingerprint", err)
	}
	if !won {
		return nil
	}

	category := domain.LessonBacktestStatus
	switch ev.Status {
	case domain.BacktestCompleted:
		category = domain.LessonBacktestCompleted
	case domain.BacktestFailed:
		category = domain.LessonBacktestFailure
	}

	id, err := s.store.NextID(ctx, "lesson")
	if err != nil {
		return apierrors.Internal("failed to allocate lesson id", err)
	}
	lesson := domain.Lesson{
		ID:       id,
		Category: category,
		Summary:  fmt.Sprintf("backtest %s for strategy %s is %s", ev.BacktestID, ev.StrategyID, ev.Status),
		Attributes: map[string]interface{}{
			"strategyId": ev.StrategyID,
			"backtestId": ev.BacktestID,
			"status":     string(ev.Status),
			"metrics":    ev.Metrics,
			"error":      ev.Error,
		},
		TenantID: tenantID,
	}
	_, err = s.store.AppendLesson(ctx, lesson)
	return err
}

// DeploymentStateEvent is the payload fingerprinted for idempotent ingestion
// of a deployment status/PnL change.
type DeploymentStateEvent struct {
	DeploymentID string
	Status       domain.DeploymentStatus
	LatestPnl    *float64
}

// IngestDeploymentState writes a deployment_state Lesson, suppressing
// duplicate writes for the same fingerprint.
func (s *Service) IngestDeploymentState(ctx context.Context, tenantID string, ev DeploymentStateEvent) error {
	fp, err := fingerprint("deployment_state", ev)
	if err != nil {
		return apierrors.Internal("failed to fingerprint deployment state event", err)
	}
	won, err := s.store.MarkIngested(ctx, ingestionScope, fp)
	if err != nil {
		return apierrors.Internal("failed to record ingestion fingerprint", err)
	}
	if !won {
		return nil
	}

	id, err := s.store.NextID(ctx, "lesson")
	if err != nil {
		return apierrors.Internal("failed to allocate lesson id", err)
	}
	attrs := map[string]interface{}{
		"deploymentId": ev.DeploymentID,
		"status":       string(ev.Status),
	}
	if ev.LatestPnl != nil {
		attrs["latestPnl"] = *ev.LatestPnl
	}
	lesson := domain.Lesson{
		ID:         id,
		Category:   domain.LessonDeploymentState,
		Summary:    fmt.Sprintf("deployment %s is now %s", ev.DeploymentID, ev.Status),
		Attributes: attrs,
		TenantID:   tenantID,
	}
	_, err = s.store.AppendLesson(ctx, lesson)
	return err
}
