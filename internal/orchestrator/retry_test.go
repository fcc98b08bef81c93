package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryBudget_FailureBudgetTakesPrecedenceOverAttemptBudget(t *testing.T) {
	budget := NewRetryBudget(RetryBudgetPolicy{MaxAttempts: 2, MaxFailures: 2, BaseBackoffSeconds: 2, MaxBackoffSeconds: 30})

	require.NoError(t, budget.BeginAttempt("run-1"))
	first := budget.RecordFailure("run-1")
	assert.True(t, first.RetryAllowed)
	assert.Equal(t, "retry_succeeded", first.Reason)
	assert.Equal(t, 2.0, first.RetryAfterSeconds)

	require.NoError(t, budget.BeginAttempt("run-1"))
	second := budget.RecordFailure("run-1")
	assert.False(t, second.RetryAllowed)
	assert.True(t, second.Terminal)
	assert.Equal(t, "failure_budget_exhausted", second.Reason)
}

func TestRetryBudget_AttemptBudgetExhaustedWhenFailuresStillUnderLimit(t *testing.T) {
	budget := NewRetryBudget(RetryBudgetPolicy{MaxAttempts: 1, MaxFailures: 5, BaseBackoffSeconds: 2, MaxBackoffSeconds: 30})

	require.NoError(t, budget.BeginAttempt("run-1"))
	decision := budget.RecordFailure("run-1")
	assert.False(t, decision.RetryAllowed)
	assert.Equal(t, "attempt_budget_exhausted", decision.Reason)
}

func TestRetryBudget_BackoffDoublesAndCaps(t *testing.T) {
	budget := NewRetryBudget(RetryBudgetPolicy{MaxAttempts: 10, MaxFailures: 10, BaseBackoffSeconds: 2, MaxBackoffSeconds: 10})

	require.NoError(t, budget.BeginAttempt("run-1"))
	d1 := budget.RecordFailure("run-1")
	assert.Equal(t, 2.0, d1.RetryAfterSeconds)

	require.NoError(t, budget.BeginAttempt("run-1"))
	d2 := budget.RecordFailure("run-1")
	assert.Equal(t, 4.0, d2.RetryAfterSeconds)

	require.NoError(t, budget.BeginAttempt("run-1"))
	d3 := budget.RecordFailure("run-1")
	assert.Equal(t, 8.0, d3.RetryAfterSeconds)

	require.NoError(t, budget.BeginAttempt("run-1"))
	d4 := budget.RecordFailure("run-1")
	assert.Equal(t, 10.0, d4.RetryAfterSeconds, "backoff must cap at maxBackoffSeconds")
}

func TestRetryBudget_BeginAttemptRejectsTerminalRun(t *testing.T) {
	budget := NewRetryBudget(DefaultRetryBudgetPolicy())
	budget.RecordSuccess("run-1")
	err := budget.BeginAttempt("run-1")
	require.Error(t, err)
}

func TestRetryBudget_Snapshot(t *testing.T) {
	budget := NewRetryBudget(DefaultRetryBudgetPolicy())
	require.NoError(t, budget.BeginAttempt("run-1"))
	budget.RecordFailure("run-1")

	snap := budget.Snapshot("run-1")
	assert.Equal(t, 1, snap.Attempts)
	assert.Equal(t, 1, snap.Failures)
	assert.False(t, snap.Terminal)
}
