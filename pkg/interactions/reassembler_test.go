// ABOUTME: Tests for the reassembler: end-to-end event application, redelivery suppression, resumption
// ABOUTME: Property test replays the last delivered event after a simulated reconnect at every cut point

package interactions

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// simpleTextFrames is the canonical short interaction: one text block "Hi there".
func simpleTextFrames() []Frame {
	return []Frame{
		{ID: "e1", Data: `{"event_type":"interaction.start","interaction":{"id":"i1","status":"in_progress"}}`},
		{ID: "e2", Data: `{"event_type":"content.start","index":0}`},
		{ID: "e3", Data: `{"event_type":"content.delta","index":0,"delta":{"type":"text","text":"Hi"}}`},
		{ID: "e4", Data: `{"event_type":"content.delta","index":0,"delta":{"type":"text","text":" there"}}`},
		{ID: "e5", Data: `{"event_type":"content.stop","index":0}`},
		{ID: "e6", Data: `{"event_type":"interaction.complete","interaction":{"id":"i1","status":"completed"}}`},
	}
}

func decodeAll(t *testing.T, frames []Frame) []Event {
	t.Helper()
	events := make([]Event, 0, len(frames))
	for _, fr := range frames {
		ev, err := DecodeFrame(fr)
		require.NoError(t, err)
		events = append(events, ev)
	}
	return events
}

func TestReassembler_SimpleText(t *testing.T) {
	t.Parallel()

	re := NewReassembler()
	var stop *ContentStopEvent
	var complete *InteractionCompleteEvent
	for _, ev := range decodeAll(t, simpleTextFrames()) {
		_, applied := re.Apply(ev)
		require.True(t, applied)
		switch e := ev.(type) {
		case *ContentStopEvent:
			stop = e
		case *InteractionCompleteEvent:
			complete = e
		}
	}

	assert.True(t, re.Done())
	assert.Equal(t, StateCompleted, re.State())
	assert.Equal(t, Position{InteractionID: "i1", LastEventID: "e6"}, re.Position())

	require.NotNil(t, stop.Content)
	assert.Equal(t, "Hi there", stop.Content.Text)

	final := re.Interaction()
	assert.Equal(t, "i1", final.ID)
	assert.Equal(t, StatusCompleted, final.Status)
	require.Len(t, final.Outputs, 1)
	assert.Equal(t, "Hi there", final.Outputs[0].Text)
	assert.Equal(t, final, complete.Interaction)
}

func TestReassembler_ServerOutputsWin(t *testing.T) {
	t.Parallel()

	re := NewReassembler()
	re.Apply(textDelta(0, "streamed"))
	re.Apply(&ContentStopEvent{Index: 0})
	re.Apply(&InteractionCompleteEvent{Interaction: &Interaction{
		ID: "i", Status: StatusCompleted,
		Outputs: []Content{{Kind: KindText, Text: "authoritative"}},
	}})

	assert.Equal(t, "authoritative", re.Interaction().Text())
	require.Len(t, re.Outputs(), 1)
	assert.Equal(t, "streamed", re.Outputs()[0].Text)
}

func TestReassembler_DropsRedelivery(t *testing.T) {
	t.Parallel()

	re := NewReassembler()
	first := &ContentDeltaEvent{eventMeta: withID("e1"), Index: 0, Delta: TextDelta{Text: "a"}}
	again := &ContentDeltaEvent{eventMeta: withID("e1"), Index: 0, Delta: TextDelta{Text: "a"}}

	_, ok := re.Apply(first)
	require.True(t, ok)
	m, ok := re.Apply(again)
	assert.False(t, ok)
	assert.Equal(t, MutationIgnored, m.Op)

	b, _ := re.Block(0)
	assert.Equal(t, "a", b.Text)
}

func TestReassembler_DropsReplayedStopAfterResume(t *testing.T) {
	t.Parallel()

	re := NewReassembler()
	events := decodeAll(t, simpleTextFrames()[:5])
	for _, ev := range events {
		re.Apply(ev)
	}

	// The reconnect replays e5 before continuing.
	replay := decodeAll(t, simpleTextFrames()[4:])
	_, ok := re.Apply(replay[0])
	assert.False(t, ok)
	_, ok = re.Apply(replay[1])
	assert.True(t, ok)

	require.Len(t, re.Outputs(), 1)
	assert.Equal(t, "Hi there", re.Outputs()[0].Text)
}

func TestReassembler_UnknownEventLeavesBlocksAlone(t *testing.T) {
	t.Parallel()

	re := NewReassembler()
	re.Apply(textDelta(0, "half"))
	m, ok := re.Apply(&UnknownEvent{eventMeta: withID("x"), EventType: "interaction.heartbeat"})
	require.True(t, ok)
	assert.Equal(t, MutationNone, m.Op)
	re.Apply(textDelta(0, "way"))
	re.Apply(&ContentStopEvent{Index: 0})

	assert.Equal(t, "halfway", re.Outputs()[0].Text)
	assert.Equal(t, "x", re.Position().LastEventID)
}

func TestReassembler_GetStreamStartsAtPosition(t *testing.T) {
	t.Parallel()

	re := NewReassemblerAt(Position{InteractionID: "i1", LastEventID: "e4"})
	for _, ev := range decodeAll(t, simpleTextFrames()[3:]) {
		re.Apply(ev)
	}
	// e4 was dropped, so only the stop and the completion applied.
	require.Len(t, re.Outputs(), 1)
	assert.Equal(t, "", re.Outputs()[0].Text)
	assert.Equal(t, StateCompleted, re.State())
}

// multiBlockFrames builds an interaction with n text blocks whose deltas
// interleave, each event carrying a unique id.
func multiBlockFrames(rng *rand.Rand, n int) []Frame {
	seq := 0
	next := func(data string) Frame {
		seq++
		return Frame{ID: fmt.Sprintf("e%d", seq), Data: data}
	}

	frames := []Frame{next(`{"event_type":"interaction.start","interaction":{"id":"i","status":"in_progress"}}`)}
	remaining := make([]int, n)
	for i := range remaining {
		remaining[i] = 1 + rng.Intn(3)
		frames = append(frames, next(fmt.Sprintf(`{"event_type":"content.start","index":%d}`, i)))
	}
	for {
		live := make([]int, 0, n)
		for i, r := range remaining {
			if r > 0 {
				live = append(live, i)
			}
		}
		if len(live) == 0 {
			break
		}
		i := live[rng.Intn(len(live))]
		remaining[i]--
		frames = append(frames, next(fmt.Sprintf(
			`{"event_type":"content.delta","index":%d,"delta":{"type":"text","text":"%d-%d;"}}`, i, i, remaining[i])))
		if remaining[i] == 0 {
			frames = append(frames, next(fmt.Sprintf(`{"event_type":"content.stop","index":%d}`, i)))
		}
	}
	return append(frames, next(`{"event_type":"interaction.complete","interaction":{"id":"i","status":"completed"}}`))
}

func TestReassembler_ResumptionProperty(t *testing.T) {
	t.Helper()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("replaying the last delivered event after a reconnect changes nothing", prop.ForAll(
		func(n int, seed int64, cutSeed int) bool {
			rng := rand.New(rand.NewSource(seed))
			frames := multiBlockFrames(rng, n)

			baseline := NewReassembler()
			for _, fr := range frames {
				ev, err := DecodeFrame(fr)
				if err != nil {
					return false
				}
				baseline.Apply(ev)
			}

			cut := 1 + cutSeed%(len(frames)-1)
			resumed := NewReassembler()
			for _, fr := range frames[:cut] {
				ev, _ := DecodeFrame(fr)
				resumed.Apply(ev)
			}
			// The server replays from the last delivered event inclusive.
			for _, fr := range frames[cut-1:] {
				ev, _ := DecodeFrame(fr)
				resumed.Apply(ev)
			}

			want, got := baseline.Interaction(), resumed.Interaction()
			if got.Status != want.Status || len(got.Outputs) != len(want.Outputs) {
				return false
			}
			for i := range want.Outputs {
				if got.Outputs[i].Text != want.Outputs[i].Text || got.Outputs[i].Index != want.Outputs[i].Index {
					return false
				}
			}
			return resumed.Done()
		},
		gen.IntRange(1, 5),
		gen.Int64(),
		gen.IntRange(0, 1000),
	))

	properties.TestingRun(t)
}
