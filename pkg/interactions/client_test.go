// ABOUTME: Tests for the Interactions client against an httptest SSE server
// ABOUTME: Covers create, reattach with last event id, handshake errors, resume and rate limiting

package interactions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/time/rate"
)

func writeSSE(w http.ResponseWriter, frames []Frame) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	for _, fr := range frames {
		if fr.Event != "" {
			fmt.Fprintf(w, "event: %s\n", fr.Event)
		}
		if fr.ID != "" {
			fmt.Fprintf(w, "id: %s\n", fr.ID)
		}
		fmt.Fprintf(w, "data: %s\n\n", fr.Data)
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func TestClient_Create(t *testing.T) {
	t.Parallel()

	var (
		mu   sync.Mutex
		body map[string]any
		reqs []*http.Request
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		mu.Lock()
		_ = json.Unmarshal(raw, &body)
		reqs = append(reqs, r)
		mu.Unlock()
		writeSSE(w, simpleTextFrames())
	}))
	t.Cleanup(srv.Close)

	c := NewClient(
		WithAPIKey("test-key"),
		WithBaseURL(srv.URL+"/v1beta/"),
		WithHeader("X-Goog-User-Project", "proj"),
		WithTracer(noop.NewTracerProvider().Tracer("test")),
	)

	s, err := c.Create(context.Background(), &CreateParams{Model: "gemini-2.5-flash", Input: "Say hi"})
	require.NoError(t, err)
	defer s.Close()

	events, err := drain(t, s)
	require.ErrorIs(t, err, io.EOF)
	assert.Len(t, events, 6)
	assert.Equal(t, "Hi there", s.Interaction().Text())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, reqs, 1)
	r := reqs[0]
	assert.Equal(t, http.MethodPost, r.Method)
	assert.Equal(t, "/v1beta/interactions", r.URL.Path)
	assert.Equal(t, "sse", r.URL.Query().Get("alt"))
	assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
	assert.Equal(t, "proj", r.Header.Get("X-Goog-User-Project"))
	assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
	_, perr := uuid.Parse(r.Header.Get("X-Request-Id"))
	assert.NoError(t, perr)

	assert.Equal(t, "gemini-2.5-flash", body["model"])
	assert.Equal(t, "Say hi", body["input"])
	assert.Equal(t, true, body["stream"])
	assert.NotContains(t, body, "agent")
}

func TestClient_CreateValidates(t *testing.T) {
	t.Parallel()

	c := NewClient(WithTransport(failingTransport{}))
	tests := []struct {
		name string
		p    *CreateParams
	}{
		{"nil params", nil},
		{"no model or agent", &CreateParams{Input: "x"}},
		{"both model and agent", &CreateParams{Model: "m", Agent: "a", Input: "x"}},
		{"no input", &CreateParams{Model: "m"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := c.Create(context.Background(), tt.p)
			assert.Error(t, err)
		})
	}
}

type failingTransport struct{}

func (failingTransport) Open(context.Context, *StreamRequest) (FrameSource, error) {
	return nil, errors.New("transport must not be reached")
}

func TestClient_GetStreamWithLastEventID(t *testing.T) {
	t.Parallel()

	gotURL := make(chan string, 1)
	gotHeader := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURL <- r.Method + " " + r.URL.String()
		gotHeader <- r.Header.Get("Last-Event-ID")
		writeSSE(w, simpleTextFrames()[3:])
	}))
	t.Cleanup(srv.Close)

	c := NewClient(WithBaseURL(srv.URL), WithAPIVersion("v1alpha"))
	s, err := c.GetStream(context.Background(), "i1", &GetStreamParams{LastEventID: "e3"})
	require.NoError(t, err)
	defer s.Close()

	events, err := drain(t, s)
	require.ErrorIs(t, err, io.EOF)
	assert.Len(t, events, 3)
	assert.Equal(t, "GET /v1alpha/interactions/i1?last_event_id=e3&stream=true", <-gotURL)
	assert.Equal(t, "e3", <-gotHeader)
	assert.Equal(t, Position{InteractionID: "i1", LastEventID: "e6"}, s.Cursor())
}

func TestClient_GetStreamRequiresID(t *testing.T) {
	t.Parallel()

	_, err := NewClient(WithTransport(failingTransport{})).GetStream(context.Background(), "", nil)
	assert.Error(t, err)
}

func TestClient_APIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"message":"bad model"}}`)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.Create(context.Background(), &CreateParams{Model: "nope", Input: "x"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "bad model")
}

func TestClient_ResumeAfterDisconnect(t *testing.T) {
	t.Parallel()

	frames := simpleTextFrames()
	var (
		mu       sync.Mutex
		resumeAt []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			// Drop the connection mid-block.
			writeSSE(w, frames[:3])
			return
		}
		last := r.URL.Query().Get("last_event_id")
		mu.Lock()
		resumeAt = append(resumeAt, last)
		mu.Unlock()

		// Replay from the last delivered event inclusive.
		start := 0
		for i, fr := range frames {
			if fr.ID == last {
				start = i
			}
		}
		writeSSE(w, frames[start:])
	}))
	t.Cleanup(srv.Close)

	c := NewClient(WithBaseURL(srv.URL))
	first, err := c.Create(context.Background(), &CreateParams{Model: "m", Input: "x"})
	require.NoError(t, err)

	events, err := drain(t, first)
	require.Len(t, events, 3)
	require.ErrorIs(t, err, ErrIncomplete)

	second, err := c.Resume(context.Background(), first)
	require.NoError(t, err)
	defer second.Close()
	defer first.Close()

	events, err = drain(t, second)
	require.ErrorIs(t, err, io.EOF)
	assert.Len(t, events, 3)

	final := second.Interaction()
	assert.Equal(t, StatusCompleted, final.Status)
	require.Len(t, final.Outputs, 1)
	assert.Equal(t, "Hi there", final.Outputs[0].Text)

	mu.Lock()
	assert.Equal(t, []string{"e3"}, resumeAt)
	mu.Unlock()

	_, err = c.Resume(context.Background(), first)
	assert.Error(t, err, "a stream resumes once")
}

func TestClient_ResumeClosedStream(t *testing.T) {
	t.Parallel()

	src := newScriptSource(simpleTextFrames()[:2]...)
	s := NewStream(context.Background(), src, nil, StreamOptions{})
	_, _ = drain(t, s)
	s.Close()

	_, err := NewClient(WithTransport(failingTransport{})).Resume(context.Background(), s)
	assert.ErrorIs(t, err, ErrStreamClosed)
}

// scriptTransport hands out one scripted source per open.
type scriptTransport struct {
	mu      sync.Mutex
	opened  []*StreamRequest
	sources []*scriptSource
}

func (t *scriptTransport) Open(_ context.Context, req *StreamRequest) (FrameSource, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.opened = append(t.opened, req)
	if len(t.sources) == 0 {
		return nil, errors.New("no more sources")
	}
	src := t.sources[0]
	t.sources = t.sources[1:]
	return src, nil
}

func TestClient_ResumeWithoutInteractionID(t *testing.T) {
	t.Parallel()

	tr := &scriptTransport{sources: []*scriptSource{
		newScriptSource(Frame{ID: "e1", Data: `{"event_type":"content.delta","index":0,"delta":{"type":"text","text":"x"}}`}),
	}}
	c := NewClient(WithTransport(tr))

	s, err := c.Create(context.Background(), &CreateParams{Agent: "deep-research", Input: "x"})
	require.NoError(t, err)
	defer s.Close()
	_, err = drain(t, s)
	require.ErrorIs(t, err, ErrIncomplete)

	_, err = c.Resume(context.Background(), s)
	assert.ErrorContains(t, err, "no interaction id")
}

func TestClient_IdleTimeoutOption(t *testing.T) {
	t.Parallel()

	src := newScriptSource()
	src.hang = true
	c := NewClient(WithTransport(&scriptTransport{sources: []*scriptSource{src}}), WithIdleTimeout(20*time.Millisecond))

	s, err := c.Create(context.Background(), &CreateParams{Model: "m", Input: "x"})
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Recv()
	assert.ErrorIs(t, err, ErrIdleTimeout)
}

func TestClient_RateLimit(t *testing.T) {
	t.Parallel()

	tr := &scriptTransport{sources: []*scriptSource{
		newScriptSource(simpleTextFrames()...),
		newScriptSource(simpleTextFrames()...),
	}}
	c := NewClient(WithTransport(tr), WithRateLimit(rate.Every(time.Hour), 1))

	s, err := c.Create(context.Background(), &CreateParams{Model: "m", Input: "x"})
	require.NoError(t, err)
	s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Create(ctx, &CreateParams{Model: "m", Input: "x"})
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "interactions: rate limit"))

	tr.mu.Lock()
	assert.Len(t, tr.opened, 1)
	tr.mu.Unlock()
}
