package mosaic

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControlTransitions(t *testing.T) {
	c := NewControl(true)
	assert.Equal(t, StateRunning, c.State())
	assert.True(t, c.Recording())

	assert.False(t, c.Resume())
	assert.True(t, c.Pause())
	assert.False(t, c.Pause())
	assert.Equal(t, StatePaused, c.State())

	assert.True(t, c.Resume())
	assert.True(t, c.Stop())

	// stopped is terminal
	assert.False(t, c.Resume())
	assert.False(t, c.Pause())
	assert.Equal(t, StateStopped, c.State())

	c.SetRecording(false)
	assert.Equal(t, Snapshot{State: StateStopped, Recording: false}, c.Snapshot())
}

func TestControlWaitForState(t *testing.T) {
	c := NewControl(false)
	c.Pause()

	done := make(chan State)
	go func() {
		s, err := c.WaitForState(context.Background(), StateRunning, StateStopped)
		assert.NoError(t, err)
		done <- s
	}()

	time.Sleep(10 * time.Millisecond)
	c.Resume()

	select {
	case s := <-done:
		assert.Equal(t, StateRunning, s)
	case <-time.After(time.Second):
		t.Fatal("WaitForState did not return after Resume")
	}
}

func TestControlWaitForStateCancelled(t *testing.T) {
	c := NewControl(false)
	c.Pause()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	s, err := c.WaitForState(ctx, StateRunning)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StatePaused, s)
}

func TestSnapshotJSON(t *testing.T) {
	data, err := json.Marshal(Snapshot{State: StatePaused, Recording: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"state":"paused","recording":true}`, string(data))
}
