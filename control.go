package mosaic

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// State is the target state of a pipeline.
type State uint32

// Pipeline states.
const (
	StateRunning State = iota
	StatePaused
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// MarshalJSON encodes the state by name.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a state name.
func (s *State) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for _, st := range []State{StateRunning, StatePaused, StateStopped} {
		if st.String() == name {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("mosaic: unknown state %q", name)
}

// Control is the cooperative control surface of a running pipeline. It is
// safe for concurrent use. The zero value is running with recording off.
type Control struct {
	mu        sync.Mutex
	state     State
	recording bool
	changed   chan struct{}
}

// NewControl returns a running control with recording set as given.
func NewControl(recording bool) *Control {
	return &Control{recording: recording}
}

// Snapshot is a point in time view of a Control.
type Snapshot struct {
	State     State `json:"state"`
	Recording bool  `json:"recording"`
}

func (c *Control) notify() {
	if c.changed != nil {
		close(c.changed)
		c.changed = nil
	}
}

func (c *Control) set(s State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateStopped || c.state == s {
		return false
	}
	c.state = s
	c.notify()
	return true
}

// Pause requests the pipeline to hold after the current frame. It reports
// whether the state changed.
func (c *Control) Pause() bool {
	return c.set(StatePaused)
}

// Resume continues a paused pipeline.
func (c *Control) Resume() bool {
	return c.set(StateRunning)
}

// Stop requests the pipeline to exit at the top of its next cycle. A stopped
// control cannot be resumed.
func (c *Control) Stop() bool {
	return c.set(StateStopped)
}

// SetRecording toggles whether rendered frames are passed to the recorder.
func (c *Control) SetRecording(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.recording != on {
		c.recording = on
		c.notify()
	}
}

// State returns the current target state.
func (c *Control) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Recording reports whether recording is on.
func (c *Control) Recording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recording
}

// Snapshot returns the state and recording flag together.
func (c *Control) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{State: c.state, Recording: c.recording}
}

// Changed returns a channel that is closed on the next change of state or
// recording flag.
func (c *Control) Changed() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.changed == nil {
		c.changed = make(chan struct{})
	}
	return c.changed
}

// WaitForState blocks until the state is one of states or ctx is done.
func (c *Control) WaitForState(ctx context.Context, states ...State) (State, error) {
	for {
		ch := c.Changed()
		s := c.State()
		for _, want := range states {
			if s == want {
				return s, nil
			}
		}

		select {
		case <-ch:
		case <-ctx.Done():
			return s, ctx.Err()
		}
	}
}
