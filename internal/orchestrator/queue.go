// Package orchestrator implements the priority run queue, its execution
// trace, and the retry budget that governs how many times a run may be
// retried before it is forced terminal.
package orchestrator

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tradeforge/controlplane/internal/domain"
	"github.com/tradeforge/controlplane/internal/fsm"
	"github.com/tradeforge/controlplane/internal/platform/apierrors"
	"github.com/tradeforge/controlplane/internal/store"
)

// TraceEvent is one execution-trace record emitted on every validated
// transition.
type TraceEvent struct {
	RunID     string
	Event     string
	Step      int
	FromState domain.OrchestratorState
	ToState   domain.OrchestratorState
	RequestID string
	TenantID  string
	UserID    string
	Metadata  map[string]interface{}
	At        time.Time
}

// heapItem is the priority-queue entry: lower Priority dequeues first, ties
// broken FIFO by the monotonic Sequence stamped at enqueue time.
type heapItem struct {
	runID    string
	priority int
	sequence int64
	index    int
}

type priorityHeap []*heapItem

func (h priorityHeap) Len() int { return len(h) }
func (h priorityHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].sequence < h[j].sequence
}
func (h priorityHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *priorityHeap) Push(x interface{}) {
	item := x.(*heapItem)
	item.index = len(*h)
	*h = append(*h, item)
}
func (h *priorityHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// Queue is the orchestrator run priority queue. It owns no persistence of
// its own beyond the heap ordering; run state lives in the store and every
// transition is validated against fsm.Orchestrator.
type Queue struct {
	store store.Store

	mu       sync.Mutex
	heap     priorityHeap
	sequence int64
	trace    []TraceEvent
}

// New builds an empty Queue backed by s.
func New(s store.Store) *Queue {
	q := &Queue{store: s}
	heap.Init(&q.heap)
	return q
}

func (q *Queue) nextSequence() int64 {
	q.sequence++
	return q.sequence
}

func (q *Queue) emit(ctx context.Context, run domain.OrchestratorRun, event string, from, to domain.OrchestratorState, metadata map[string]interface{}) {
	q.trace = append(q.trace, TraceEvent{
		RunID:     run.ID,
		Event:     event,
		Step:      len(q.trace) + 1,
		FromState: from,
		ToState:   to,
		RequestID: requestIDFrom(ctx),
		TenantID:  run.TenantID,
		UserID:    run.UserID,
		Metadata:  metadata,
		At:        time.Now().UTC(),
	})
}

// Trace returns every execution-trace event for tenantID recorded so far,
// oldest first.
func (q *Queue) Trace(tenantID string) []TraceEvent {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]TraceEvent, 0, len(q.trace))
	for _, ev := range q.trace {
		if ev.TenantID == tenantID {
			out = append(out, ev)
		}
	}
	return out
}

// transition validates from->to, persists the run, and emits a trace event.
func (q *Queue) transition(ctx context.Context, run domain.OrchestratorRun, to domain.OrchestratorState, event string, metadata map[string]interface{}) (domain.OrchestratorRun, error) {
	from := run.State
	next, err := fsm.Orchestrator.Transition(from, to)
	if err != nil {
		return run, apierrors.Validation("state", fmt.Sprintf("invalid transition %s -> %s", from, to))
	}
	run.State = next
	updated, err := q.store.UpdateOrchestratorRun(ctx, run)
	if err != nil {
		return run, apierrors.Internal("failed to persist orchestrator run", err)
	}
	q.emit(ctx, updated, event, from, next, metadata)
	return updated, nil
}

// Enqueue creates a run in "received" state, transitions it to "queued", and
// pushes it onto the heap at the given priority (lower runs first).
func (q *Queue) Enqueue(ctx context.Context, tenantID, userID string, priority int) (domain.OrchestratorRun, error) {
	id, err := q.store.NextID(ctx, "run")
	if err != nil {
		return domain.OrchestratorRun{}, apierrors.Internal("failed to allocate run id", err)
	}
	run := domain.OrchestratorRun{
		ID:       id,
		State:    domain.RunReceived,
		Priority: priority,
		TenantID: tenantID,
		UserID:   userID,
	}
	run, err = q.store.CreateOrchestratorRun(ctx, run)
	if err != nil {
		return domain.OrchestratorRun{}, apierrors.Internal("failed to create orchestrator run", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	run.Sequence = q.nextSequence()
	if _, err := q.store.UpdateOrchestratorRun(ctx, run); err != nil {
		return domain.OrchestratorRun{}, apierrors.Internal("failed to stamp run sequence", err)
	}

	run, err = q.transition(ctx, run, domain.RunQueued, "enqueued", nil)
	if err != nil {
		return domain.OrchestratorRun{}, err
	}
	heap.Push(&q.heap, &heapItem{runID: run.ID, priority: priority, sequence: run.Sequence})
	return run, nil
}

// DequeueNext pops the highest-priority (lowest numeric value), oldest run
// and transitions it to "executing". Returns (run, false, nil) when empty.
func (q *Queue) DequeueNext(ctx context.Context, tenantID, userID string) (domain.OrchestratorRun, bool, error) {
	q.mu.Lock()
	if q.heap.Len() == 0 {
		q.mu.Unlock()
		return domain.OrchestratorRun{}, false, nil
	}
	item := heap.Pop(&q.heap).(*heapItem)
	q.mu.Unlock()

	run, err := q.store.GetOrchestratorRun(ctx, tenantID, item.runID)
	if err != nil {
		return domain.OrchestratorRun{}, false, apierrors.Internal("failed to load dequeued run", err)
	}
	run, err = q.transition(ctx, run, domain.RunExecuting, "dequeued", nil)
	if err != nil {
		return domain.OrchestratorRun{}, false, err
	}
	return run, true, nil
}

// MarkAwaitingTool transitions an executing run to awaiting_tool.
func (q *Queue) MarkAwaitingTool(ctx context.Context, tenantID string, runID string) (domain.OrchestratorRun, error) {
	run, err := q.store.GetOrchestratorRun(ctx, tenantID, runID)
	if err != nil {
		return domain.OrchestratorRun{}, apierrors.NotFound("orchestrator_run", runID)
	}
	return q.transition(ctx, run, domain.RunAwaitingTool, "awaiting_tool", nil)
}

// MarkAwaitingUserConfirmation transitions an executing run to
// awaiting_user_confirmation.
func (q *Queue) MarkAwaitingUserConfirmation(ctx context.Context, tenantID string, runID string) (domain.OrchestratorRun, error) {
	run, err := q.store.GetOrchestratorRun(ctx, tenantID, runID)
	if err != nil {
		return domain.OrchestratorRun{}, apierrors.NotFound("orchestrator_run", runID)
	}
	return q.transition(ctx, run, domain.RunAwaitingUserConfirmation, "awaiting_user_confirmation", nil)
}

// Resume transitions an awaiting_* run back to executing.
func (q *Queue) Resume(ctx context.Context, tenantID string, runID string) (domain.OrchestratorRun, error) {
	run, err := q.store.GetOrchestratorRun(ctx, tenantID, runID)
	if err != nil {
		return domain.OrchestratorRun{}, apierrors.NotFound("orchestrator_run", runID)
	}
	return q.transition(ctx, run, domain.RunExecuting, "resumed", nil)
}

// Complete transitions a run to completed.
func (q *Queue) Complete(ctx context.Context, tenantID string, runID string) (domain.OrchestratorRun, error) {
	run, err := q.store.GetOrchestratorRun(ctx, tenantID, runID)
	if err != nil {
		return domain.OrchestratorRun{}, apierrors.NotFound("orchestrator_run", runID)
	}
	return q.transition(ctx, run, domain.RunCompleted, "completed", nil)
}

// Fail transitions a run to failed, recording reason in the trace metadata.
func (q *Queue) Fail(ctx context.Context, tenantID string, runID string, reason string) (domain.OrchestratorRun, error) {
	run, err := q.store.GetOrchestratorRun(ctx, tenantID, runID)
	if err != nil {
		return domain.OrchestratorRun{}, apierrors.NotFound("orchestrator_run", runID)
	}
	return q.transition(ctx, run, domain.RunFailed, "failed", map[string]interface{}{"reason": reason})
}

// Cancel transitions a run to cancelled with the given reason, permitted
// from any non-terminal state. Terminal states are immutable: fsm.Transition
// rejects the move and this returns the unchanged run with no error, since
// cancelling an already-finished run is a no-op rather than a failure.
func (q *Queue) Cancel(ctx context.Context, tenantID string, runID string, reason string) (domain.OrchestratorRun, error) {
	run, err := q.store.GetOrchestratorRun(ctx, tenantID, runID)
	if err != nil {
		return domain.OrchestratorRun{}, apierrors.NotFound("orchestrator_run", runID)
	}
	if fsm.Orchestrator.IsTerminal(run.State) {
		return run, nil
	}
	run.CancellationReason = reason
	return q.transition(ctx, run, domain.RunCancelled, "cancelled", map[string]interface{}{"reason": reason})
}

type requestIDCtxKey struct{}

// WithRequestID stashes a request id on ctx for trace events to pick up.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDCtxKey{}, requestID)
}

func requestIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDCtxKey{}).(string); ok {
		return v
	}
	return ""
}
