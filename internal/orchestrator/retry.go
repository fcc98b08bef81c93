package orchestrator

import (
	"fmt"
	"sync"
)

// RetryBudgetPolicy bounds how many attempts and failures a run may accrue
// before its retry decision is forced terminal.
type RetryBudgetPolicy struct {
	MaxAttempts        int
	MaxFailures        int
	BaseBackoffSeconds float64
	MaxBackoffSeconds  float64
}

// DefaultRetryBudgetPolicy mirrors the reference contract tests.
func DefaultRetryBudgetPolicy() RetryBudgetPolicy {
	return RetryBudgetPolicy{MaxAttempts: 3, MaxFailures: 3, BaseBackoffSeconds: 2, MaxBackoffSeconds: 30}
}

// RetryDecision is the outcome of recordFailure.
type RetryDecision struct {
	RetryAllowed      bool
	Terminal          bool
	NextState         string
	Reason            string
	RetryAfterSeconds float64
}

// retryState is per-run attempt/failure bookkeeping.
type retryState struct {
	attempts int
	failures int
	terminal bool
}

// RetryBudget tracks retry state per run against a single policy.
type RetryBudget struct {
	policy RetryBudgetPolicy

	mu   sync.Mutex
	runs map[string]*retryState
}

// NewRetryBudget builds a RetryBudget enforcing policy.
func NewRetryBudget(policy RetryBudgetPolicy) *RetryBudget {
	return &RetryBudget{policy: policy, runs: make(map[string]*retryState)}
}

func (b *RetryBudget) state(runID string) *retryState {
	s, ok := b.runs[runID]
	if !ok {
		s = &retryState{}
		b.runs[runID] = s
	}
	return s
}

// BeginAttempt increments the attempt counter. It errors if the run's retry
// state is already terminal.
func (b *RetryBudget) BeginAttempt(runID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.state(runID)
	if s.terminal {
		return fmt.Errorf("orchestrator: run %s retry state is already terminal", runID)
	}
	s.attempts++
	return nil
}

// RecordFailure increments the failure counter and decides whether another
// attempt is allowed. The failure budget is checked before the attempt
// budget: failure exhaustion takes precedence when both are exhausted at
// once.
func (b *RetryBudget) RecordFailure(runID string) RetryDecision {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.state(runID)
	s.failures++

	if s.failures >= b.policy.MaxFailures {
		s.terminal = true
		return RetryDecision{RetryAllowed: false, Terminal: true, NextState: "failed", Reason: "failure_budget_exhausted"}
	}
	if s.attempts >= b.policy.MaxAttempts {
		s.terminal = true
		return RetryDecision{RetryAllowed: false, Terminal: true, NextState: "failed", Reason: "attempt_budget_exhausted"}
	}

	backoff := b.policy.BaseBackoffSeconds * float64(int(1)<<uint(s.attempts-1))
	if backoff > b.policy.MaxBackoffSeconds {
		backoff = b.policy.MaxBackoffSeconds
	}
	return RetryDecision{
		RetryAllowed:      true,
		Terminal:          false,
		NextState:         "awaiting_tool",
		Reason:            "retry_succeeded",
		RetryAfterSeconds: backoff,
	}
}

// RecordSuccess marks the run's retry state terminal without counting a
// failure.
func (b *RetryBudget) RecordSuccess(runID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state(runID).terminal = true
}

// RetrySnapshot is the observability view of a run's retry state.
type RetrySnapshot struct {
	Attempts int
	Failures int
	Terminal bool
}

// Snapshot exposes the current retry state for a run.
func (b *RetryBudget) Snapshot(runID string) RetrySnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.state(runID)
	return RetrySnapshot{Attempts: s.attempts, Failures: s.failures, Terminal: s.terminal}
}
