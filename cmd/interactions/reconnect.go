// ABOUTME: Stream wrapper that resumes dropped interaction streams transparently
// ABOUTME: Retries Client.Resume on incomplete, transport, or idle failures up to a limit

package main

import (
	"context"
	"errors"
	"sync"

	genlog "github.com/mauromedda/genai-go/internal/log"
	"github.com/mauromedda/genai-go/pkg/interactions"
)

// reconnector presents a chain of resumed streams as one event source.
type reconnector struct {
	ctx    context.Context
	client *interactions.Client
	limit  int

	mu       sync.Mutex
	cur      *interactions.Stream
	all      []*interactions.Stream
	attempts int
	closed   bool
}

func newReconnector(ctx context.Context, client *interactions.Client, s *interactions.Stream, limit int) *reconnector {
	return &reconnector{ctx: ctx, client: client, limit: limit, cur: s, all: []*interactions.Stream{s}}
}

// retryable reports whether a stream failure may be cured by resuming.
func retryable(err error) bool {
	var te *interactions.TransportError
	return errors.Is(err, interactions.ErrIncomplete) ||
		errors.Is(err, interactions.ErrIdleTimeout) ||
		errors.As(err, &te)
}

func (r *reconnector) current() *interactions.Stream {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cur
}

// Recv returns the next event, resuming the interaction when the underlying
// stream drops before completing.
func (r *reconnector) Recv() (interactions.Event, error) {
	for {
		s := r.current()
		ev, err := s.Recv()
		if err == nil || !retryable(err) || r.ctx.Err() != nil {
			return ev, err
		}

		r.mu.Lock()
		if r.closed || r.attempts >= r.limit {
			r.mu.Unlock()
			return nil, err
		}
		r.attempts++
		attempt := r.attempts
		r.mu.Unlock()

		pos := s.Cursor()
		genlog.Info("stream interrupted at %q (%v); resuming %s (attempt %d/%d)", pos.LastEventID, err, pos.InteractionID, attempt, r.limit)
		next, rerr := r.client.Resume(r.ctx, s)
		if rerr != nil {
			genlog.Warn("resume failed: %v", rerr)
			return nil, err
		}

		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			_ = next.Close()
			return nil, interactions.ErrStreamClosed
		}
		r.cur = next
		r.all = append(r.all, next)
		r.mu.Unlock()
	}
}

// Close closes every stream in the chain.
func (r *reconnector) Close() error {
	r.mu.Lock()
	r.closed = true
	all := r.all
	r.mu.Unlock()

	var errs []error
	for _, s := range all {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

func (r *reconnector) Block(index int) (interactions.Content, bool) { return r.current().Block(index) }
func (r *reconnector) State() interactions.State                     { return r.current().State() }
func (r *reconnector) Cursor() interactions.Position                 { return r.current().Cursor() }
func (r *reconnector) Interaction() *interactions.Interaction        { return r.current().Interaction() }

// Attempts returns how many times the stream was resumed.
func (r *reconnector) Attempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts
}
