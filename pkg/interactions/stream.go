// ABOUTME: Stream: pull-based iterator over a frame source with reassembly, idle timeout and cancellation
// ABOUTME: A background pump reads frames; decoding and state mutation happen on the consumer goroutine

package interactions

import (
	"context"
	"errors"
	"io"
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const defaultBufferSize = 64

var errStreamDone = errors.New("interactions: stream finished")

// FrameSource yields raw frames from a transport.
type FrameSource interface {
	// Next blocks until the next frame and returns io.EOF at a clean end of input.
	Next() (Frame, error)
	// Close releases the connection. It must unblock a pending Next.
	Close() error
}

// StreamOptions tunes a Stream.
type StreamOptions struct {
	// BufferSize bounds the frames read ahead of the consumer. Zero means 64.
	BufferSize int
	// IdleTimeout ends the stream with ErrIdleTimeout when the transport
	// delivers nothing for this long. Zero disables it.
	IdleTimeout time.Duration
	// Span, when set, is ended when the stream finishes or is closed.
	Span trace.Span
}

// Stream delivers the events of one interaction in arrival order while
// reassembling its content blocks. Recv must be called from one goroutine;
// Close and the state accessors may be called from any goroutine.
type Stream struct {
	ctx    context.Context
	src    FrameSource
	re     *Reassembler
	cancel context.CancelCauseFunc
	group  *errgroup.Group
	frames chan Frame
	span   trace.Span

	// Idle watchdog signalling.
	activity chan struct{}
	reading  atomic.Bool
	pumpDone chan struct{}

	closedCh  chan struct{}
	closeOnce sync.Once
	srcOnce   sync.Once
	spanOnce  sync.Once

	mu     sync.Mutex
	err    error // sticky terminal result; io.EOF on clean completion
	closed bool
	// released hides open blocks after a timeout or cancellation. They are
	// kept for a resumed stream to continue.
	released bool
	events int
	next   *Stream // set once the reassembly state moved to a resumed stream
}

// NewStream starts reading from src. A nil re starts a fresh reassembly; a
// non-nil re continues one, e.g. after a resume. Cancelling ctx aborts the
// stream and Recv then returns the context's error.
func NewStream(ctx context.Context, src FrameSource, re *Reassembler, opts StreamOptions) *Stream {
	if re == nil {
		re = NewReassembler()
	}
	size := opts.BufferSize
	if size <= 0 {
		size = defaultBufferSize
	}

	base, cancel := context.WithCancelCause(ctx)
	g, gctx := errgroup.WithContext(base)

	s := &Stream{
		ctx:      ctx,
		src:      src,
		re:       re,
		cancel:   cancel,
		group:    g,
		frames:   make(chan Frame, size),
		span:     opts.Span,
		activity: make(chan struct{}, 1),
		pumpDone: make(chan struct{}),
		closedCh: make(chan struct{}),
	}

	// Any cancellation, including the idle watchdog failing the group,
	// tears down the connection so a blocked Next returns.
	context.AfterFunc(gctx, s.closeSource)

	g.Go(func() error { return s.pump(gctx) })
	if opts.IdleTimeout > 0 {
		g.Go(func() error { return s.watch(gctx, opts.IdleTimeout) })
	}
	return s
}

func (s *Stream) pump(ctx context.Context) error {
	defer close(s.pumpDone)
	defer close(s.frames)

	for {
		if ctx.Err() != nil {
			return context.Cause(ctx)
		}
		s.reading.Store(true)
		s.poke()
		fr, err := s.src.Next()
		s.reading.Store(false)
		if err != nil {
			if ctx.Err() != nil {
				return context.Cause(ctx)
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return &TransportError{Err: err}
		}

		select {
		case s.frames <- fr:
		case <-ctx.Done():
			return context.Cause(ctx)
		}
	}
}

func (s *Stream) poke() {
	select {
	case s.activity <- struct{}{}:
	default:
	}
}

// watch fails the group when a transport read stays blocked for idle. Time
// spent waiting on a slow consumer does not count.
func (s *Stream) watch(ctx context.Context, idle time.Duration) error {
	t := time.NewTimer(idle)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.pumpDone:
			return nil
		case <-s.activity:
			t.Reset(idle)
		case <-t.C:
			select {
			case <-s.activity:
				t.Reset(idle)
				continue
			default:
			}
			if !s.reading.Load() {
				t.Reset(idle)
				continue
			}
			return ErrIdleTimeout
		}
	}
}

// Recv returns the next event. After the terminal interaction.complete event
// it returns io.EOF. If the transport ends first it returns an
// *IncompleteError; transport failures come back as *TransportError and
// malformed known frames as *DecodeError. After Close it returns ErrStreamClosed.
func (s *Stream) Recv() (Event, error) {
	for {
		s.mu.Lock()
		closed, err := s.closed, s.err
		s.mu.Unlock()
		if closed {
			return nil, ErrStreamClosed
		}
		if err != nil {
			return nil, err
		}
		if err := s.ctx.Err(); err != nil {
			return nil, s.finish(err)
		}

		var (
			fr Frame
			ok bool
		)
		select {
		case fr, ok = <-s.frames:
		case <-s.closedCh:
			return nil, ErrStreamClosed
		case <-s.ctx.Done():
			return nil, s.finish(s.ctx.Err())
		}
		if !ok {
			return nil, s.finish(s.endErr())
		}

		ev, err := s.handle(fr)
		if err != nil {
			return nil, s.finish(err)
		}
		if ev != nil {
			return ev, nil
		}
	}
}

// endErr explains why the frame channel closed.
func (s *Stream) endErr() error {
	err := s.group.Wait()
	switch {
	case err == nil:
		s.mu.Lock()
		defer s.mu.Unlock()
		return &IncompleteError{LastError: s.re.LastError()}
	case errors.Is(err, ErrStreamClosed):
		return ErrStreamClosed
	default:
		return err
	}
}

// handle decodes and applies one frame. It returns a nil event for a dropped
// redelivery.
func (s *Stream) handle(fr Frame) (Event, error) {
	ev, err := DecodeFrame(fr)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStreamClosed
	}
	if err != nil {
		var de *DecodeError
		if errors.As(err, &de) {
			s.re.cursor.AdvanceID(de.EventID)
		}
		return nil, err
	}

	if _, applied := s.re.Apply(ev); !applied {
		return nil, nil
	}
	s.events++
	if s.re.Done() {
		s.err = io.EOF
		s.cancel(errStreamDone)
		s.endSpan(io.EOF, s.spanAttrs())
	}
	return ev, nil
}

// finish records err as the sticky result, releases the transport and ends
// the span. The first recorded result wins.
func (s *Stream) finish(err error) error {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
		s.released = abortsLikeClose(err)
	}
	err = s.err
	attrs := s.spanAttrs()
	s.mu.Unlock()

	s.cancel(errStreamDone)
	s.endSpan(err, attrs)
	return err
}

// abortsLikeClose reports whether err ends the stream the way Close does.
func abortsLikeClose(err error) bool {
	return errors.Is(err, ErrIdleTimeout) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func (s *Stream) closeSource() {
	s.srcOnce.Do(func() { _ = s.src.Close() })
}

// spanAttrs must be called with mu held.
func (s *Stream) spanAttrs() []attribute.KeyValue {
	if s.span == nil {
		return nil
	}
	return []attribute.KeyValue{
		attribute.Int("interactions.events", s.events),
		attribute.String("interactions.state", s.re.State().String()),
		attribute.String("interactions.last_event_id", s.re.Position().LastEventID),
	}
}

func (s *Stream) endSpan(err error, attrs []attribute.KeyValue) {
	if s.span == nil {
		return
	}
	s.spanOnce.Do(func() {
		s.span.SetAttributes(attrs...)
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, ErrStreamClosed) {
			s.span.RecordError(err)
			s.span.SetStatus(codes.Error, err.Error())
		}
		s.span.End()
	})
}

// Close aborts the stream. It is idempotent and safe to call concurrently
// with Recv. Open blocks are discarded, sealed blocks stay readable, and no
// transport reads happen once Close returns.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		if s.next == nil {
			s.re.Discard()
		}
		attrs := s.spanAttrs()
		s.mu.Unlock()

		close(s.closedCh)
		s.cancel(ErrStreamClosed)
		s.closeSource()
		_ = s.group.Wait()
		s.endSpan(ErrStreamClosed, attrs)
	})
	return nil
}

// All adapts Recv to a range-over-func iterator. Iteration ends silently on
// clean completion and yields the error otherwise. Breaking out of the loop
// closes the stream.
func (s *Stream) All() iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		for {
			ev, err := s.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(ev, nil) {
				_ = s.Close()
				return
			}
		}
	}
}

// Interaction returns the consolidated interaction observed so far.
func (s *Stream) Interaction() *Interaction {
	if n := s.successor(); n != nil {
		return n.Interaction()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.re.Interaction()
}

// Cursor returns the resumption position.
func (s *Stream) Cursor() Position {
	if n := s.successor(); n != nil {
		return n.Cursor()
	}
	return s.re.Position()
}

// State returns the lifecycle state.
func (s *Stream) State() State {
	if n := s.successor(); n != nil {
		return n.State()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.re.State()
}

// Block returns a snapshot of the block at index, open or sealed. Once the
// stream timed out or its context ended, only sealed blocks are returned.
func (s *Stream) Block(index int) (Content, bool) {
	if n := s.successor(); n != nil {
		return n.Block(index)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released && !s.re.Sealed(index) {
		return Content{}, false
	}
	return s.re.Block(index)
}

// Err returns the result that ended the stream, or nil while it is live.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed && s.err == nil {
		return ErrStreamClosed
	}
	return s.err
}

func (s *Stream) successor() *Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// resumable returns the reassembly state a resumed stream should continue.
// It fails when the stream is still live, completed cleanly, was closed by
// the caller, or was already resumed.
func (s *Stream) resumable() (*Reassembler, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.next != nil:
		return nil, errors.New("interactions: stream already resumed")
	case s.closed:
		return nil, ErrStreamClosed
	case s.err == nil:
		return nil, errors.New("interactions: cannot resume a live stream")
	case errors.Is(s.err, io.EOF):
		return nil, errors.New("interactions: interaction already completed")
	}
	return s.re, nil
}

// handOff records that next now owns the reassembly state.
func (s *Stream) handOff(next *Stream) {
	s.mu.Lock()
	s.next = next
	s.mu.Unlock()
}
