// ABOUTME: Resumable stream cursor: remembers the interaction id and last delivered event id
// ABOUTME: Pure state holder; transports read Snapshot to build a resume request

package interactions

import "sync"

// Position identifies where a stream left off.
type Position struct {
	InteractionID string `json:"interaction_id" yaml:"interaction_id"`
	LastEventID   string `json:"last_event_id,omitempty" yaml:"last_event_id,omitempty"`
}

// Cursor tracks the last delivered event id. It is safe to Snapshot from
// another goroutine while the stream consumer advances it.
type Cursor struct {
	mu  sync.Mutex
	pos Position
}

// NewCursor creates a cursor starting at pos.
func NewCursor(pos Position) *Cursor {
	return &Cursor{pos: pos}
}

// Advance records ev's event id, whatever the event type, and learns the
// interaction id from lifecycle events.
func (c *Cursor) Advance(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id := ev.EventID(); id != "" {
		c.pos.LastEventID = id
	}
	if c.pos.InteractionID != "" {
		return
	}
	switch e := ev.(type) {
	case *InteractionStartEvent:
		if e.Interaction != nil {
			c.pos.InteractionID = e.Interaction.ID
		}
	case *InteractionCompleteEvent:
		if e.Interaction != nil {
			c.pos.InteractionID = e.Interaction.ID
		}
	case *StatusUpdateEvent:
		c.pos.InteractionID = e.InteractionID
	}
}

// AdvanceID records an event id without a decoded event, e.g. for a frame
// that failed to decode.
func (c *Cursor) AdvanceID(id string) {
	if id == "" {
		return
	}
	c.mu.Lock()
	c.pos.LastEventID = id
	c.mu.Unlock()
}

// Snapshot returns the current position.
func (c *Cursor) Snapshot() Position {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pos
}

// isLast reports whether id is the last recorded event id.
func (c *Cursor) isLast(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return id != "" && c.pos.LastEventID == id
}
