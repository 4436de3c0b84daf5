// ABOUTME: Tests for the resumable cursor: every id-bearing event advances it
// ABOUTME: Interaction id is learned once from lifecycle events

package interactions

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCursor_Advance(t *testing.T) {
	t.Parallel()

	c := NewCursor(Position{})
	assert.Equal(t, Position{}, c.Snapshot())

	c.Advance(&InteractionStartEvent{eventMeta: withID("e1"), Interaction: &Interaction{ID: "int_1"}})
	assert.Equal(t, Position{InteractionID: "int_1", LastEventID: "e1"}, c.Snapshot())

	c.Advance(&ContentDeltaEvent{Index: 0, Delta: TextDelta{Text: "x"}})
	assert.Equal(t, "e1", c.Snapshot().LastEventID, "events without id leave the cursor")

	c.Advance(&ErrorEvent{eventMeta: withID("e2")})
	assert.Equal(t, "e2", c.Snapshot().LastEventID)

	c.Advance(&UnknownEvent{eventMeta: withID("e3"), EventType: "x"})
	assert.Equal(t, "e3", c.Snapshot().LastEventID)

	c.Advance(&StatusUpdateEvent{eventMeta: withID("e4"), InteractionID: "other"})
	assert.Equal(t, Position{InteractionID: "int_1", LastEventID: "e4"}, c.Snapshot())

	c.AdvanceID("")
	c.AdvanceID("e5")
	assert.Equal(t, "e5", c.Snapshot().LastEventID)
}

func TestCursor_ConcurrentSnapshot(t *testing.T) {
	t.Parallel()

	c := NewCursor(Position{InteractionID: "int_1"})
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for range 1000 {
			c.Advance(&ContentStopEvent{eventMeta: withID("e")})
		}
	}()
	go func() {
		defer wg.Done()
		for range 1000 {
			_ = c.Snapshot()
		}
	}()
	wg.Wait()
	assert.Equal(t, "e", c.Snapshot().LastEventID)
}
