package job

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJob_HappyPath(t *testing.T) {
	j := New(context.Background(), "extract")
	assert.Equal(t, StatePending, j.State())

	require.NoError(t, j.Start(3))
	j.Advance(1, "c1")
	j.Advance(2, "")
	require.NoError(t, j.Complete())

	snap := j.Snapshot()
	assert.Equal(t, StateCompleted, snap.State)
	assert.Equal(t, 3, snap.Total)
	assert.Equal(t, 3, snap.Done)
	assert.Equal(t, "c1", snap.Message)
	assert.False(t, snap.FinishedAt.IsZero())
	assert.Error(t, j.Context().Err(), "finished jobs release their context")
}

func TestJob_InvalidTransitions(t *testing.T) {
	j := New(context.Background(), "extract")

	err := j.Complete()
	var invalid ErrInvalidTransition
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, StatePending, invalid.From)
	assert.Equal(t, StateCompleted, invalid.To)

	require.NoError(t, j.Start(1))
	assert.Error(t, j.Start(1))

	require.NoError(t, j.Fail(errors.New("disk full")))
	assert.Equal(t, StateFailed, j.State())
	assert.EqualError(t, j.Err(), "disk full")
	assert.Error(t, j.Complete())
}

func TestJob_Cancel(t *testing.T) {
	j := New(context.Background(), "extract")
	require.NoError(t, j.Start(10))

	require.NoError(t, j.Cancel())
	assert.Equal(t, StateCancelled, j.State())
	assert.ErrorIs(t, j.Context().Err(), context.Canceled)

	// Advancing after cancellation is ignored
	j.Advance(5, "late")
	assert.Equal(t, 0, j.Snapshot().Done)

	// Cancelling again is a no-op
	assert.NoError(t, j.Cancel())
}

func TestJob_CancelAfterCompleteIsNoop(t *testing.T) {
	j := New(context.Background(), "infer")
	require.NoError(t, j.Start(0))
	require.NoError(t, j.Complete())

	assert.NoError(t, j.Cancel())
	assert.Equal(t, StateCompleted, j.State())
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	a := r.Create(context.Background(), "extract")
	b := r.Create(context.Background(), "infer")

	got, ok := r.Get(a.ID())
	require.True(t, ok)
	assert.Same(t, a, got)
	assert.Len(t, r.List(), 2)

	require.NoError(t, b.Start(1))
	require.NoError(t, b.Complete())

	assert.Equal(t, 1, r.Prune())
	_, ok = r.Get(b.ID())
	assert.False(t, ok)
}
