package activity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hstp/node/internal/nodeerr"
)

func TestLegalTransitionSequence(t *testing.T) {
	a := &Activity{Status: StatusCreated}
	now := time.Unix(0, 0)

	require.NoError(t, a.transitionTo(StatusQueued, now))
	require.NoError(t, a.transitionTo(StatusRunning, now))
	require.NoError(t, a.transitionTo(StatusPaused, now))
	require.NoError(t, a.transitionTo(StatusRunning, now))
	require.NoError(t, a.transitionTo(StatusCompleted, now))

	assert.True(t, a.Status.IsTerminal())
	assert.Len(t, a.History, 5)
}

func TestIllegalTransitionRejected(t *testing.T) {
	a := &Activity{Status: StatusCreated}
	err := a.transitionTo(StatusRunning, time.Unix(0, 0))
	require.Error(t, err)
	assert.True(t, nodeerr.Is(err, nodeerr.KindExecution))
}

func TestTerminalStatusHasNoOutboundTransition(t *testing.T) {
	for _, terminal := range []Status{StatusCompleted, StatusFailed, StatusCancelled} {
		a := &Activity{Status: terminal}
		err := a.transitionTo(StatusRunning, time.Unix(0, 0))
		assert.Error(t, err, terminal)
	}
}

func TestSnapshotIsIndependentCopy(t *testing.T) {
	a := &Activity{Status: StatusRunning, Input: map[string]any{"x": 1}}
	snap := a.Snapshot()

	a.Input["x"] = 2
	assert.Equal(t, 1, snap.Input["x"])
}
