package knowledge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeforge/controlplane/internal/domain"
	"github.com/tradeforge/controlplane/internal/store/memory"
)

func TestService_IngestBacktestOutcome_IdempotentAtMostOneLesson(t *testing.T) {
	st := memory.New()
	svc := New(st)
	ctx := context.Background()

	ev := BacktestOutcomeEvent{
		StrategyID: "strat-1",
		BacktestID: "bt-1",
		Status:     domain.BacktestCompleted,
		Metrics:    map[string]float64{"sharpe": 1.2},
	}

	require.NoError(t, svc.IngestBacktestOutcome(ctx, "t1", ev))
	require.NoError(t, svc.IngestBacktestOutcome(ctx, "t1", ev))

	lessons, err := st.ListLessons(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, lessons, 1)
	assert.Equal(t, domain.LessonBacktestCompleted, lessons[0].Category)
}

func TestService_IngestBacktestOutcome_FailureCategory(t *testing.T) {
	st := memory.New()
	svc := New(st)
	ctx := context.Background()

	ev := BacktestOutcomeEvent{StrategyID: "strat-1", BacktestID: "bt-2", Status: domain.BacktestFailed, Error: "provider timeout"}
	require.NoError(t, svc.IngestBacktestOutcome(ctx, "t1", ev))

	lessons, err := st.ListLessons(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, lessons, 1)
	assert.Equal(t, domain.LessonBacktestFailure, lessons[0].Category)
}

func TestService_IngestDeploymentState_IdempotentAtMostOneLesson(t *testing.T) {
	st := memory.New()
	svc := New(st)
	ctx := context.Background()

	pnl := 120.5
	ev := DeploymentStateEvent{DeploymentID: "dep-1", Status: domain.DeploymentRunning, LatestPnl: &pnl}

	require.NoError(t, svc.IngestDeploymentState(ctx, "t1", ev))
	require.NoError(t, svc.IngestDeploymentState(ctx, "t1", ev))

	lessons, err := st.ListLessons(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, lessons, 1)
	assert.Equal(t, domain.LessonDeploymentState, lessons[0].Category)
}

func TestService_IngestDeploymentState_DifferentPnlIsDistinctEvent(t *testing.T) {
	st := memory.New()
	svc := New(st)
	ctx := context.Background()

	first, second := 10.0, 20.0
	require.NoError(t, svc.IngestDeploymentState(ctx, "t1", DeploymentStateEvent{DeploymentID: "dep-1", Status: domain.DeploymentRunning, LatestPnl: &first}))
	require.NoError(t, svc.IngestDeploymentState(ctx, "t1", DeploymentStateEvent{DeploymentID: "dep-1", Status: domain.DeploymentRunning, LatestPnl: &second}))

	lessons, err := st.ListLessons(ctx, "t1")
	require.NoError(t, err)
	assert.Len(t, lessons, 2)
}
