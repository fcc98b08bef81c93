package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeforge/controlplane/internal/domain"
	"github.com/tradeforge/controlplane/internal/store/memory"
)

func TestQueue_DequeueNext_FIFOWithinPriority(t *testing.T) {
	st := memory.New()
	q := New(st)
	ctx := context.Background()

	low, err := q.Enqueue(ctx, "t1", "u1", 5)
	require.NoError(t, err)
	high1, err := q.Enqueue(ctx, "t1", "u1", 1)
	require.NoError(t, err)
	high2, err := q.Enqueue(ctx, "t1", "u1", 1)
	require.NoError(t, err)

	first, ok, err := q.DequeueNext(ctx, "t1", "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, high1.ID, first.ID)
	assert.Equal(t, domain.RunExecuting, first.State)

	second, ok, err := q.DequeueNext(ctx, "t1", "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, high2.ID, second.ID)

	third, ok, err := q.DequeueNext(ctx, "t1", "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, low.ID, third.ID)

	_, ok, err = q.DequeueNext(ctx, "t1", "u1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestQueue_Cancel_TerminalStateIsImmutable(t *testing.T) {
	st := memory.New()
	q := New(st)
	ctx := context.Background()

	run, err := q.Enqueue(ctx, "t1", "u1", 1)
	require.NoError(t, err)
	run, _, err = q.DequeueNext(ctx, "t1", "u1")
	require.NoError(t, err)
	run, err = q.Complete(ctx, "t1", run.ID)
	require.NoError(t, err)
	require.Equal(t, domain.RunCompleted, run.State)

	unchanged, err := q.Cancel(ctx, "t1", run.ID, "too late")
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, unchanged.State)
}

func TestQueue_Cancel_FromExecutingRecordsReason(t *testing.T) {
	st := memory.New()
	q := New(st)
	ctx := context.Background()

	run, err := q.Enqueue(ctx, "t1", "u1", 1)
	require.NoError(t, err)
	run, _, err = q.DequeueNext(ctx, "t1", "u1")
	require.NoError(t, err)

	cancelled, err := q.Cancel(ctx, "t1", run.ID, "operator abort")
	require.NoError(t, err)
	assert.Equal(t, domain.RunCancelled, cancelled.State)
	assert.Equal(t, "operator abort", cancelled.CancellationReason)
}

func TestQueue_Trace_RecordsEveryTransition(t *testing.T) {
	st := memory.New()
	q := New(st)
	ctx := context.Background()

	run, err := q.Enqueue(ctx, "t1", "u1", 1)
	require.NoError(t, err)
	_, _, err = q.DequeueNext(ctx, "t1", "u1")
	require.NoError(t, err)
	_, err = q.Complete(ctx, "t1", run.ID)
	require.NoError(t, err)

	trace := q.Trace("t1")
	require.Len(t, trace, 3)
	assert.Equal(t, "enqueued", trace[0].Event)
	assert.Equal(t, "dequeued", trace[1].Event)
	assert.Equal(t, "completed", trace[2].Event)
	assert.Equal(t, domain.RunCompleted, trace[2].ToState)
}
