// ABOUTME: Terminal test for Run: drives the program through a real PTY
// ABOUTME: Waits for the first frame, presses q, and expects a user stop

package tui

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/creack/pty"

	"github.com/mauromedda/genai-go/pkg/interactions"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRun_StopKeyThroughPTY(t *testing.T) {
	if testing.Short() {
		t.Skip("pty test skipped in short mode")
	}

	ptmx, tty, err := pty.Open()
	if err != nil {
		t.Skipf("no pty available: %v", err)
	}
	defer ptmx.Close()
	defer tty.Close()
	if err := pty.Setsize(ptmx, &pty.Winsize{Rows: 24, Cols: 80}); err != nil {
		t.Fatalf("setsize: %v", err)
	}

	var screen syncBuffer
	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := ptmx.Read(buf)
			if n > 0 {
				_, _ = screen.Write(buf[:n])
			}
			if err != nil {
				return
			}
		}
	}()

	src := &sliceSource{frames: append([]interactions.Frame(nil), weatherFrames[:3]...), hang: make(chan struct{})}
	s := interactions.NewStream(context.Background(), src, nil, interactions.StreamOptions{})
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	type result struct {
		m   Model
		err error
	}
	done := make(chan result, 1)
	go func() {
		m, err := Run(ctx, s, Options{Input: tty, Output: tty, MarkdownStyle: "notty"})
		done <- result{m, err}
	}()

	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(screen.String(), "q to stop") {
		if time.Now().After(deadline) {
			t.Fatalf("first frame never rendered; screen: %q", screen.String())
		}
		time.Sleep(20 * time.Millisecond)
	}
	if _, err := ptmx.Write([]byte("q")); err != nil {
		t.Fatalf("write key: %v", err)
	}

	select {
	case r := <-done:
		if r.err != nil {
			t.Fatalf("Run: %v", r.err)
		}
		if !r.m.Cancelled() {
			t.Error("expected a user stop")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after q")
	}

	if !strings.Contains(screen.String(), "sunny") {
		t.Errorf("screen missing streamed text: %q", screen.String())
	}
}
