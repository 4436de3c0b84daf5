// ABOUTME: Reassembler: one interaction's accumulator, lifecycle tracker and cursor behind one Apply
// ABOUTME: Drops redelivered events and folds sealed blocks into the final interaction

package interactions

import "github.com/mauromedda/genai-go/internal/log"

// Reassembler applies decoded events, in arrival order, to the accumulator,
// the lifecycle tracker and the cursor of a single interaction. It can be
// driven directly by a custom transport or carried across a resumed stream.
// It is not safe for concurrent use.
type Reassembler struct {
	acc     *Accumulator
	tracker *Tracker
	cursor  *Cursor
}

// NewReassembler creates an empty reassembler.
func NewReassembler() *Reassembler {
	return NewReassemblerAt(Position{})
}

// NewReassemblerAt creates an empty reassembler whose cursor starts at pos, so
// that a redelivery of pos.LastEventID is dropped.
func NewReassemblerAt(pos Position) *Reassembler {
	return &Reassembler{
		acc:     NewAccumulator(),
		tracker: NewTracker(),
		cursor:  NewCursor(pos),
	}
}

// Apply applies ev. It returns false, without touching any state, when ev
// carries the same event id as the last applied event.
//
// On success, a *ContentStopEvent gets its Content set to the sealed block and
// an *InteractionCompleteEvent gets the consolidated final interaction.
func (r *Reassembler) Apply(ev Event) (Mutation, bool) {
	if id := ev.EventID(); r.cursor.isLast(id) {
		log.Debug("interactions: dropping redelivered event %s (%s)", id, ev.Type())
		return Mutation{Op: MutationIgnored, Reason: "redelivered event"}, false
	}

	m := r.acc.Apply(ev)
	if stop, ok := ev.(*ContentStopEvent); ok && m.Op == MutationSealed {
		stop.Content = m.Block
	}

	if r.tracker.Apply(ev) {
		if complete, ok := ev.(*InteractionCompleteEvent); ok {
			complete.Interaction = r.Interaction()
		}
	}

	if u, ok := ev.(*UnknownEvent); ok {
		log.Debug("interactions: passing through unknown event type %q", u.EventType)
	}

	r.cursor.Advance(ev)
	return m, true
}

// Interaction returns the consolidated interaction: the tracker's snapshot
// with the sealed blocks as outputs unless the server supplied its own.
func (r *Reassembler) Interaction() *Interaction {
	in := r.tracker.Interaction()
	if in == nil {
		return nil
	}
	if len(in.Outputs) == 0 {
		in.Outputs = r.acc.Outputs()
	}
	return in
}

// Outputs returns the sealed blocks ordered by index.
func (r *Reassembler) Outputs() []Content { return r.acc.Outputs() }

// Block returns a snapshot of the block at index, open or sealed.
func (r *Reassembler) Block(index int) (Content, bool) { return r.acc.Block(index) }

// Sealed reports whether the block at index has been sealed.
func (r *Reassembler) Sealed(index int) bool { return r.acc.Sealed(index) }

// State returns the lifecycle state.
func (r *Reassembler) State() State { return r.tracker.State() }

// Done reports whether a terminal lifecycle event was applied.
func (r *Reassembler) Done() bool { return r.tracker.State().Terminal() }

// LastError returns the most recent server-reported error event.
func (r *Reassembler) LastError() *ErrorEvent { return r.tracker.LastError() }

// Position returns the cursor position for resumption.
func (r *Reassembler) Position() Position { return r.cursor.Snapshot() }

// Discard drops in-progress blocks without sealing them.
func (r *Reassembler) Discard() { r.acc.Discard() }
