// ABOUTME: Tests for Stream: clean completion, incomplete and failed transports, cancellation, idle timeout
// ABOUTME: A scripted FrameSource stands in for the network

package interactions

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptSource replays frames, then returns err (io.EOF when nil) or, with
// hang set, blocks until closed.
type scriptSource struct {
	mu     sync.Mutex
	frames []Frame
	err    error
	hang   bool

	reads     atomic.Int32
	closed    chan struct{}
	closeOnce sync.Once
}

func newScriptSource(frames ...Frame) *scriptSource {
	return &scriptSource{frames: frames, closed: make(chan struct{})}
}

func (s *scriptSource) Next() (Frame, error) {
	s.reads.Add(1)
	select {
	case <-s.closed:
		return Frame{}, errors.New("source closed")
	default:
	}

	s.mu.Lock()
	if len(s.frames) > 0 {
		fr := s.frames[0]
		s.frames = s.frames[1:]
		s.mu.Unlock()
		return fr, nil
	}
	s.mu.Unlock()

	if s.hang {
		<-s.closed
		return Frame{}, errors.New("source closed")
	}
	if s.err != nil {
		return Frame{}, s.err
	}
	return Frame{}, io.EOF
}

func (s *scriptSource) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

func (s *scriptSource) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

func drain(t *testing.T, s *Stream) ([]Event, error) {
	t.Helper()
	var events []Event
	for {
		ev, err := s.Recv()
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
}

func TestStream_SimpleText(t *testing.T) {
	t.Parallel()

	src := newScriptSource(simpleTextFrames()...)
	s := NewStream(context.Background(), src, nil, StreamOptions{})
	defer s.Close()

	events, err := drain(t, s)
	require.ErrorIs(t, err, io.EOF)
	require.Len(t, events, 6)

	stop, ok := events[4].(*ContentStopEvent)
	require.True(t, ok)
	assert.Equal(t, "Hi there", stop.Content.Text)

	final := s.Interaction()
	assert.Equal(t, "i1", final.ID)
	assert.Equal(t, StatusCompleted, final.Status)
	require.Len(t, final.Outputs, 1)
	assert.Equal(t, "Hi there", final.Outputs[0].Text)
	assert.Equal(t, StateCompleted, s.State())

	_, err = s.Recv()
	assert.ErrorIs(t, err, io.EOF, "io.EOF is sticky")
	assert.Eventually(t, src.isClosed, time.Second, 5*time.Millisecond)
}

func TestStream_ErrorWithoutCompletion(t *testing.T) {
	t.Parallel()

	src := newScriptSource(
		Frame{Data: `{"event_type":"interaction.start","interaction":{"id":"i2","status":"in_progress"}}`},
		Frame{Data: `{"event_type":"content.start","index":0}`},
		Frame{Data: `{"event_type":"error","error":{"code":"internal","message":"backend failure"}}`},
	)
	s := NewStream(context.Background(), src, nil, StreamOptions{})
	defer s.Close()

	events, err := drain(t, s)
	require.Len(t, events, 3)
	assert.IsType(t, &ErrorEvent{}, events[2])

	require.ErrorIs(t, err, ErrIncomplete)
	assert.False(t, errors.Is(err, io.EOF))
	var ee *ErrorEvent
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "internal", ee.Code)

	assert.Equal(t, StateStarted, s.State())
	assert.ErrorIs(t, s.Err(), ErrIncomplete)
}

func TestStream_TransportError(t *testing.T) {
	t.Parallel()

	src := newScriptSource(simpleTextFrames()[:3]...)
	src.err = errors.New("connection reset by peer")
	s := NewStream(context.Background(), src, nil, StreamOptions{})
	defer s.Close()

	events, err := drain(t, s)
	assert.Len(t, events, 3)
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.EqualError(t, te.Err, "connection reset by peer")

	b, ok := s.Block(0)
	require.True(t, ok, "open blocks survive a transport failure")
	assert.Equal(t, "Hi", b.Text)
	assert.Equal(t, Position{InteractionID: "i1", LastEventID: "e3"}, s.Cursor())
}

func TestStream_DecodeErrorIsTerminal(t *testing.T) {
	t.Parallel()

	src := newScriptSource(
		simpleTextFrames()[0],
		Frame{ID: "bad", Data: `{"event_type":"content.delta","index":0,"delta":`},
		simpleTextFrames()[2],
	)
	s := NewStream(context.Background(), src, nil, StreamOptions{})
	defer s.Close()

	events, err := drain(t, s)
	assert.Len(t, events, 1)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "bad", de.EventID)
	assert.Equal(t, "bad", s.Cursor().LastEventID)

	_, again := s.Recv()
	assert.Same(t, err, again)
}

func TestStream_UnknownEventPassesThrough(t *testing.T) {
	t.Parallel()

	frames := simpleTextFrames()
	withUnknown := append([]Frame{}, frames[:3]...)
	withUnknown = append(withUnknown, Frame{ID: "hb", Data: `{"event_type":"interaction.heartbeat"}`})
	withUnknown = append(withUnknown, frames[3:]...)

	s := NewStream(context.Background(), newScriptSource(withUnknown...), nil, StreamOptions{})
	defer s.Close()

	events, err := drain(t, s)
	require.ErrorIs(t, err, io.EOF)
	require.Len(t, events, 7)
	assert.IsType(t, &UnknownEvent{}, events[3])
	assert.Equal(t, "Hi there", s.Interaction().Text())
}

func TestStream_DropsConsecutiveDuplicate(t *testing.T) {
	t.Parallel()

	frames := simpleTextFrames()
	dup := append([]Frame{}, frames[:4]...)
	dup = append(dup, frames[3])
	dup = append(dup, frames[4:]...)

	s := NewStream(context.Background(), newScriptSource(dup...), nil, StreamOptions{})
	defer s.Close()

	events, err := drain(t, s)
	require.ErrorIs(t, err, io.EOF)
	assert.Len(t, events, 6)
	assert.Equal(t, "Hi there", s.Interaction().Text())
}

func TestStream_CloseUnblocksRecv(t *testing.T) {
	t.Parallel()

	src := newScriptSource(simpleTextFrames()[:3]...)
	src.hang = true
	s := NewStream(context.Background(), src, nil, StreamOptions{})

	for range 3 {
		_, err := s.Recv()
		require.NoError(t, err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.Recv()
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrStreamClosed)
	case <-time.After(time.Second):
		t.Fatal("Recv still blocked after Close")
	}

	reads := src.reads.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, reads, src.reads.Load(), "no transport reads after Close")
	assert.True(t, src.isClosed())

	_, err := s.Recv()
	assert.ErrorIs(t, err, ErrStreamClosed)

	_, open := s.Block(0)
	assert.False(t, open, "open blocks are discarded on Close")
}

func TestStream_ContextCancel(t *testing.T) {
	t.Parallel()

	src := newScriptSource()
	src.hang = true
	ctx, cancel := context.WithCancel(context.Background())
	s := NewStream(ctx, src, nil, StreamOptions{})
	defer s.Close()

	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := s.Recv()
	assert.ErrorIs(t, err, context.Canceled)
	assert.Eventually(t, src.isClosed, time.Second, 5*time.Millisecond)
}

func TestStream_Deadline(t *testing.T) {
	t.Parallel()

	src := newScriptSource(simpleTextFrames()[:2]...)
	src.hang = true
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	s := NewStream(ctx, src, nil, StreamOptions{})
	defer s.Close()

	_, err := drain(t, s)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, io.EOF)
}

func TestStream_IdleTimeout(t *testing.T) {
	t.Parallel()

	src := newScriptSource(simpleTextFrames()[:2]...)
	src.hang = true
	s := NewStream(context.Background(), src, nil, StreamOptions{IdleTimeout: 30 * time.Millisecond})
	defer s.Close()

	events, err := drain(t, s)
	assert.Len(t, events, 2)
	assert.ErrorIs(t, err, ErrIdleTimeout)
	assert.True(t, src.isClosed())
}

func TestStream_IdleTimeoutReleasesOpenBlocks(t *testing.T) {
	t.Parallel()

	frames := simpleTextFrames()
	src := newScriptSource(frames[:3]...)
	src.hang = true
	first := NewStream(context.Background(), src, nil, StreamOptions{IdleTimeout: 30 * time.Millisecond})
	defer first.Close()

	_, err := drain(t, first)
	require.ErrorIs(t, err, ErrIdleTimeout)
	_, open := first.Block(0)
	assert.False(t, open, "open blocks are released on timeout")

	// A resumed stream still continues the half-built block.
	re, err := first.resumable()
	require.NoError(t, err)
	second := NewStream(context.Background(), newScriptSource(frames[2:]...), re, StreamOptions{})
	first.handOff(second)
	defer second.Close()

	_, err = drain(t, second)
	require.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "Hi there", second.Interaction().Text())
}

func TestStream_ContextCancelReleasesOpenBlocks(t *testing.T) {
	t.Parallel()

	src := newScriptSource(simpleTextFrames()[:3]...)
	src.hang = true
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	s := NewStream(ctx, src, nil, StreamOptions{})
	defer s.Close()

	_, err := drain(t, s)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	_, open := s.Block(0)
	assert.False(t, open)
}

func TestStream_IdleTimeoutIgnoresSlowConsumer(t *testing.T) {
	t.Parallel()

	src := newScriptSource(simpleTextFrames()...)
	s := NewStream(context.Background(), src, nil, StreamOptions{IdleTimeout: 20 * time.Millisecond, BufferSize: 1})
	defer s.Close()

	var n int
	for {
		_, err := s.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		n++
		time.Sleep(30 * time.Millisecond)
	}
	assert.Equal(t, 6, n)
}

func TestStream_AllBreakCloses(t *testing.T) {
	t.Parallel()

	src := newScriptSource(simpleTextFrames()...)
	s := NewStream(context.Background(), src, nil, StreamOptions{})

	var seen []EventType
	for ev, err := range s.All() {
		require.NoError(t, err)
		seen = append(seen, ev.Type())
		if ev.Type() == EventContentStart {
			break
		}
	}

	assert.Equal(t, []EventType{EventInteractionStart, EventContentStart}, seen)
	assert.True(t, src.isClosed())
	_, err := s.Recv()
	assert.ErrorIs(t, err, ErrStreamClosed)
}

func TestStream_AllYieldsTerminalError(t *testing.T) {
	t.Parallel()

	s := NewStream(context.Background(), newScriptSource(simpleTextFrames()[:2]...), nil, StreamOptions{})
	defer s.Close()

	var count int
	var last error
	for ev, err := range s.All() {
		if err != nil {
			last = err
			continue
		}
		assert.NotNil(t, ev)
		count++
	}
	assert.Equal(t, 2, count)
	assert.ErrorIs(t, last, ErrIncomplete)
}

func TestStream_AllCleanCompletion(t *testing.T) {
	t.Parallel()

	s := NewStream(context.Background(), newScriptSource(simpleTextFrames()...), nil, StreamOptions{})
	defer s.Close()

	var count int
	for _, err := range s.All() {
		require.NoError(t, err)
		count++
	}
	assert.Equal(t, 6, count)
	assert.Equal(t, "Hi there", s.Interaction().Text())
}

func TestStream_ContinuesReassembler(t *testing.T) {
	t.Parallel()

	frames := simpleTextFrames()

	first := NewStream(context.Background(), newScriptSource(frames[:3]...), nil, StreamOptions{})
	_, err := drain(t, first)
	require.ErrorIs(t, err, ErrIncomplete)

	re, err := first.resumable()
	require.NoError(t, err)

	// Replay starts at the last delivered event.
	second := NewStream(context.Background(), newScriptSource(frames[2:]...), re, StreamOptions{})
	first.handOff(second)
	defer second.Close()

	events, err := drain(t, second)
	require.ErrorIs(t, err, io.EOF)
	assert.Len(t, events, 3, "the replayed e3 is dropped")
	assert.Equal(t, "Hi there", second.Interaction().Text())
	assert.Equal(t, "Hi there", first.Interaction().Text(), "the old handle follows the resumed stream")

	require.NoError(t, first.Close())
	assert.Equal(t, "Hi there", second.Interaction().Text())
}

func TestStream_Resumable(t *testing.T) {
	t.Parallel()

	live := NewStream(context.Background(), newScriptSource(simpleTextFrames()...), nil, StreamOptions{})
	_, err := live.resumable()
	assert.Error(t, err, "live stream")

	_, _ = drain(t, live)
	_, err = live.resumable()
	assert.Error(t, err, "completed stream")
	live.Close()

	closed := NewStream(context.Background(), newScriptSource(simpleTextFrames()[:2]...), nil, StreamOptions{})
	_, _ = drain(t, closed)
	closed.Close()
	_, err = closed.resumable()
	assert.ErrorIs(t, err, ErrStreamClosed)
}
