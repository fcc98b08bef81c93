// Package replay implements the Validation Replay Gate: comparing a
// candidate validation decision against a stored baseline and deriving
// merge/release blocking status.
package replay

import (
	"math"
)

// Decision is a validation outcome ranked fail < conditional_pass < pass.
type Decision string

const (
	DecisionFail            Decision = "fail"
	DecisionConditionalPass Decision = "conditional_pass"
	DecisionPass            Decision = "pass"
	DecisionUnknown         Decision = "unknown"
)

var decisionRank = map[Decision]int{
	DecisionFail:            0,
	DecisionConditionalPass: 1,
	DecisionPass:            2,
}

// Input is the Validation Replay Gate's decision procedure input.
type Input struct {
	BaselineDecision        Decision
	CandidateDecision       Decision
	BaselineDriftPct        float64
	CandidateDriftPct       float64
	DriftThresholdPct       float64
	BlockMergeOnFail        bool
	BlockReleaseOnFail      bool
	BlockMergeOnAgentFail   bool
	BlockReleaseOnAgentFail bool
}

// Result is the gate's computed decision and blocking status.
type Result struct {
	Decision          Decision
	Reason            string
	DriftDelta        float64
	MergeBlocked      bool
	ReleaseBlocked    bool
	MergeGateStatus   string
	ReleaseGateStatus string
}

// Evaluate runs the five-step decision procedure from spec §4.10.
func Evaluate(in Input) (Result, error) {
	if !isFiniteNonNegative(in.BaselineDriftPct) || !isFiniteNonNegative(in.CandidateDriftPct) {
		return Result{}, &InvalidDriftError{Baseline: in.BaselineDriftPct, Candidate: in.CandidateDriftPct}
	}

	decision := in.CandidateDecision
	reason := ""

	if rank(decision) < rank(in.BaselineDecision) {
		decision = DecisionFail
		reason = "candidate_decision_regressed_from_baseline"
	}

	delta := math.Max(0, in.CandidateDriftPct-in.BaselineDriftPct)
	if delta > in.DriftThresholdPct {
		decision = DecisionFail
		reason = "metric_drift_threshold_exceeded"
	}

	var mergeBlocked, releaseBlocked bool
	switch decision {
	case DecisionFail:
		mergeBlocked = in.BlockMergeOnFail
		releaseBlocked = in.BlockReleaseOnFail
	case DecisionConditionalPass:
		mergeBlocked = in.BlockMergeOnAgentFail
		releaseBlocked = in.BlockReleaseOnAgentFail
	}

	return Result{
		Decision:          decision,
		Reason:            reason,
		DriftDelta:        delta,
		MergeBlocked:      mergeBlocked,
		ReleaseBlocked:    releaseBlocked,
		MergeGateStatus:   gateStatus(mergeBlocked),
		ReleaseGateStatus: gateStatus(releaseBlocked),
	}, nil
}

func rank(d Decision) int {
	r, ok := decisionRank[d]
	if !ok {
		return -1
	}
	return r
}

func gateStatus(blocked bool) string {
	if blocked {
		return "blocked"
	}
	return "pass"
}

func isFiniteNonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

// InvalidDriftError reports a non-finite or negative drift percentage.
type InvalidDriftError struct {
	Baseline  float64
	Candidate float64
}

func (e *InvalidDriftError) Error() string {
	return "replay: drift percentages must be finite and non-negative"
}
