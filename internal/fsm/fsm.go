// Package fsm implements the three deterministic lifecycle state machines:
// orchestrator run, deployment, and order. Each is defined by a valid-state
// set, an allowed-transition table, and a terminal-state set that absorbs
// any further transition.
package fsm

import (
	"fmt"

	"github.com/tradeforge/controlplane/internal/domain"
)

// TransitionError is raised when a transition is not present in a machine's
// allowed-transition table.
type TransitionError struct {
	Machine string
	From    string
	To      string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: invalid transition %s -> %s", e.Machine, e.From, e.To)
}

// Orchestrator is the run lifecycle machine.
var Orchestrator = newMachine("orchestrator",
	map[domain.OrchestratorState]bool{
		domain.RunReceived: true, domain.RunQueued: true, domain.RunExecuting: true,
		domain.RunAwaitingTool: true, domain.RunAwaitingUserConfirmation: true,
		domain.RunCompleted: true, domain.RunFailed: true, domain.RunCancelled: true,
	},
	map[domain.OrchestratorState]map[domain.OrchestratorState]bool{
		domain.RunReceived: {domain.RunQueued: true, domain.RunCancelled: true},
		domain.RunQueued:   {domain.RunExecuting: true, domain.RunCancelled: true},
		domain.RunExecuting: {
			domain.RunAwaitingTool: true, domain.RunAwaitingUserConfirmation: true,
			domain.RunCompleted: true, domain.RunFailed: true, domain.RunCancelled: true,
		},
		domain.RunAwaitingTool: {
			domain.RunExecuting: true, domain.RunCancelled: true,
			domain.RunCompleted: true, domain.RunFailed: true,
		},
		domain.RunAwaitingUserConfirmation: {
			domain.RunExecuting: true, domain.RunCancelled: true,
			domain.RunCompleted: true, domain.RunFailed: true,
		},
	},
	map[domain.OrchestratorState]bool{domain.RunCompleted: true, domain.RunFailed: true, domain.RunCancelled: true},
)

type stateMachine[S comparable] struct {
	name     string
	valid    map[S]bool
	allowed  map[S]map[S]bool
	terminal map[S]bool
}

func newMachine[S comparable](name string, valid map[S]bool, allowed map[S]map[S]bool, terminal map[S]bool) *stateMachine[S] {
	return &stateMachine[S]{name: name, valid: valid, allowed: allowed, terminal: terminal}
}

// IsTerminal reports whether s is an absorbing state.
func (m *stateMachine[S]) IsTerminal(s S) bool {
	return m.terminal[s]
}

// Transition validates from->to against the allowed table, rejecting any
// move out of a terminal state.
func (m *stateMachine[S]) Transition(from, to S) (S, error) {
	if m.terminal[from] {
		return from, &TransitionError{Machine: m.name, From: fmt.Sprint(from), To: fmt.Sprint(to)}
	}
	if from == to {
		return to, nil
	}
	if next, ok := m.allowed[from]; ok && next[to] {
		return to, nil
	}
	return from, &TransitionError{Machine: m.name, From: fmt.Sprint(from), To: fmt.Sprint(to)}
}
