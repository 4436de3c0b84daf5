// ABOUTME: Interaction lifecycle tracker: NotStarted -> Started -> Completed/Failed/Cancelled
// ABOUTME: Synthesizes a missing start instead of rejecting out-of-order lifecycle frames

package interactions

import "github.com/mauromedda/genai-go/internal/log"

// State is the coarse lifecycle state of a streamed interaction.
type State int

const (
	StateNotStarted State = iota
	StateStarted
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateStarted:
		return "started"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further lifecycle transitions are possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Tracker follows lifecycle and status events of one interaction.
type Tracker struct {
	state       State
	interaction *Interaction
	lastError   *ErrorEvent
	// synthesized is set while the snapshot's status was made up by an
	// implicit start rather than reported by the server.
	synthesized bool
}

// NewTracker creates a tracker in StateNotStarted.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Apply updates the tracker and reports whether ev moved it to a terminal state.
// Events arriving after a terminal state are ignored.
func (t *Tracker) Apply(ev Event) bool {
	if t.state.Terminal() {
		return false
	}

	switch e := ev.(type) {
	case *InteractionStartEvent:
		if t.state == StateNotStarted {
			t.state = StateStarted
			t.interaction = e.Interaction.clone()
			if t.interaction == nil {
				t.interaction = &Interaction{}
			}
			return false
		}
		// Late or redelivered start: keep what we have, fill gaps only.
		if e.Interaction != nil {
			t.interaction.fillGaps(e.Interaction)
			if t.synthesized && e.Interaction.Status != "" {
				t.interaction.Status = e.Interaction.Status
			}
		}
		t.synthesized = false

	case *StatusUpdateEvent:
		t.ensureStarted(e.InteractionID)
		t.interaction.Status = e.Status
		t.synthesized = false

	case *InteractionCompleteEvent:
		if t.state == StateNotStarted {
			log.Debug("interactions: complete received before start; synthesizing start")
		}
		final := e.Interaction.clone()
		if final == nil {
			t.ensureStarted("")
			final = t.interaction.clone()
			final.Status = StatusCompleted
		} else if t.interaction != nil {
			final.fillGaps(t.interaction)
		}
		if final.Status == "" {
			final.Status = StatusCompleted
		}
		t.interaction = final
		t.synthesized = false
		t.state = terminalState(final.Status)
		return true

	case *ErrorEvent:
		t.lastError = e

	case *ContentStartEvent, *ContentDeltaEvent, *ContentStopEvent:
		t.ensureStarted("")
	}
	return false
}

func (t *Tracker) ensureStarted(id string) {
	if t.state != StateNotStarted {
		if t.interaction.ID == "" {
			t.interaction.ID = id
		}
		return
	}
	t.state = StateStarted
	t.interaction = &Interaction{ID: id, Status: StatusInProgress}
	t.synthesized = true
}

func terminalState(s Status) State {
	switch s {
	case StatusFailed:
		return StateFailed
	case StatusCancelled:
		return StateCancelled
	default:
		return StateCompleted
	}
}

// State returns the current lifecycle state.
func (t *Tracker) State() State { return t.state }

// Interaction returns a copy of the current interaction snapshot, or nil
// before anything was observed.
func (t *Tracker) Interaction() *Interaction { return t.interaction.clone() }

// LastError returns the most recent server-reported error event.
func (t *Tracker) LastError() *ErrorEvent { return t.lastError }
