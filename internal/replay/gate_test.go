package replay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate_DeltaEqualToThresholdDoesNotFail(t *testing.T) {
	result, err := Evaluate(Input{
		BaselineDecision:  DecisionPass,
		CandidateDecision: DecisionPass,
		BaselineDriftPct:  0.2,
		CandidateDriftPct: 0.7,
		DriftThresholdPct: 0.5,
	})
	require.NoError(t, err)
	assert.Equal(t, DecisionPass, result.Decision)
	assert.InDelta(t, 0.5, result.DriftDelta, 1e-9)
	assert.Equal(t, "pass", result.MergeGateStatus)
}

func TestEvaluate_DeltaStrictlyAboveThresholdFails(t *testing.T) {
	result, err := Evaluate(Input{
		BaselineDecision:   DecisionPass,
		CandidateDecision:  DecisionPass,
		BaselineDriftPct:   0.2,
		CandidateDriftPct:  0.700001,
		DriftThresholdPct:  0.5,
		BlockMergeOnFail:   true,
		BlockReleaseOnFail: true,
	})
	require.NoError(t, err)
	assert.Equal(t, DecisionFail, result.Decision)
	assert.Equal(t, "metric_drift_threshold_exceeded", result.Reason)
	assert.Equal(t, "blocked", result.MergeGateStatus)
	assert.Equal(t, "blocked", result.ReleaseGateStatus)
}

func TestEvaluate_CandidateRegressionForcesFail(t *testing.T) {
	result, err := Evaluate(Input{
		BaselineDecision:  DecisionPass,
		CandidateDecision: DecisionConditionalPass,
		DriftThresholdPct: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, DecisionFail, result.Decision)
	assert.Equal(t, "candidate_decision_regressed_from_baseline", result.Reason)
}

func TestEvaluate_ConditionalPassUsesAgentFailFlags(t *testing.T) {
	result, err := Evaluate(Input{
		BaselineDecision:      DecisionConditionalPass,
		CandidateDecision:     DecisionConditionalPass,
		DriftThresholdPct:     1,
		BlockMergeOnAgentFail: true,
		BlockMergeOnFail:      true,
	})
	require.NoError(t, err)
	assert.Equal(t, DecisionConditionalPass, result.Decision)
	assert.True(t, result.MergeBlocked)
	assert.False(t, result.ReleaseBlocked)
}

func TestEvaluate_NegativeDriftIsInvalid(t *testing.T) {
	_, err := Evaluate(Input{
		BaselineDecision:  DecisionPass,
		CandidateDecision: DecisionPass,
		BaselineDriftPct:  -1,
		DriftThresholdPct: 1,
	})
	require.Error(t, err)
}

func TestEvaluate_PassWithNoRegressionAndWithinThresholdIsUnblocked(t *testing.T) {
	result, err := Evaluate(Input{
		BaselineDecision:   DecisionPass,
		CandidateDecision:  DecisionPass,
		BaselineDriftPct:   0,
		CandidateDriftPct:  0,
		DriftThresholdPct:  1,
		BlockMergeOnFail:   true,
		BlockReleaseOnFail: true,
	})
	require.NoError(t, err)
	assert.Equal(t, DecisionPass, result.Decision)
	assert.False(t, result.MergeBlocked)
	assert.False(t, result.ReleaseBlocked)
}
