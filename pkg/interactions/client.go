// ABOUTME: Interactions API client: creates, reattaches to and resumes streamed interactions
// ABOUTME: Each open is rate limited, tagged with a request id and traced for the stream's lifetime

package interactions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/mauromedda/genai-go/internal/log"
)

const tracerName = "github.com/mauromedda/genai-go/pkg/interactions"

// Client opens interaction streams. It is safe for concurrent use.
type Client struct {
	transport   Transport
	limiter     *rate.Limiter
	tracer      trace.Tracer
	idleTimeout time.Duration
	bufferSize  int
}

// NewClient creates a client.
func NewClient(opts ...Option) *Client {
	o := &options{
		baseURL:    DefaultBaseURL,
		apiVersion: DefaultAPIVersion,
	}
	for _, opt := range opts {
		opt(o)
	}

	c := &Client{
		transport:   o.transport,
		tracer:      o.tracer,
		idleTimeout: o.idleTimeout,
		bufferSize:  o.bufferSize,
	}
	if c.transport == nil {
		c.transport = newHTTPTransport(o)
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(tracerName)
	}
	if o.limit > 0 {
		burst := o.burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(o.limit, burst)
	}
	return c
}

// GenerationConfig tunes sampling.
type GenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"top_p,omitempty"`
	MaxOutputTokens int      `json:"max_output_tokens,omitempty"`
	ThinkingLevel   string   `json:"thinking_level,omitempty"`
	ThinkingSummary string   `json:"thinking_summaries,omitempty"`
	StopSequences   []string `json:"stop_sequences,omitempty"`
}

// CreateParams is the request body of a new interaction. Exactly one of
// Model or Agent must be set.
type CreateParams struct {
	Model string `json:"model,omitempty"`
	Agent string `json:"agent,omitempty"`
	// Input is a string or a list of content/turn objects.
	Input                 any               `json:"input"`
	SystemInstruction     string            `json:"system_instruction,omitempty"`
	PreviousInteractionID string            `json:"previous_interaction_id,omitempty"`
	Tools                 []json.RawMessage `json:"tools,omitempty"`
	GenerationConfig      *GenerationConfig `json:"generation_config,omitempty"`
	ResponseModalities    []string          `json:"response_modalities,omitempty"`
	Store                 *bool             `json:"store,omitempty"`
	Background            bool              `json:"background,omitempty"`
}

// GetStreamParams selects where a reattached stream starts.
type GetStreamParams struct {
	// LastEventID replays only events after this id. Empty replays everything.
	LastEventID string
}

type createBody struct {
	*CreateParams
	Stream bool `json:"stream"`
}

func (p *CreateParams) validate() error {
	switch {
	case p == nil:
		return errors.New("interactions: nil CreateParams")
	case p.Model == "" && p.Agent == "":
		return errors.New("interactions: one of Model or Agent is required")
	case p.Model != "" && p.Agent != "":
		return errors.New("interactions: Model and Agent are mutually exclusive")
	case p.Input == nil:
		return errors.New("interactions: Input is required")
	}
	return nil
}

// Create starts a new interaction and streams it.
func (c *Client) Create(ctx context.Context, p *CreateParams) (*Stream, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	body, err := json.Marshal(createBody{CreateParams: p, Stream: true})
	if err != nil {
		return nil, fmt.Errorf("interactions: encoding request: %w", err)
	}
	return c.open(ctx, &StreamRequest{Body: body}, nil)
}

// GetStream reattaches to an existing interaction. With a LastEventID, the
// returned stream reassembles only the replayed tail.
func (c *Client) GetStream(ctx context.Context, id string, p *GetStreamParams) (*Stream, error) {
	if id == "" {
		return nil, errors.New("interactions: interaction id is required")
	}
	req := &StreamRequest{InteractionID: id}
	if p != nil {
		req.LastEventID = p.LastEventID
	}
	re := NewReassemblerAt(Position{InteractionID: id, LastEventID: req.LastEventID})
	return c.open(ctx, req, re)
}

// Resume reopens the interaction of a stream that ended without completing,
// from its last delivered event id, and continues its reassembly: blocks
// that were open when prev failed keep accumulating. prev must not have been
// closed. Afterwards prev's accessors report the resumed stream's state.
func (c *Client) Resume(ctx context.Context, prev *Stream) (*Stream, error) {
	re, err := prev.resumable()
	if err != nil {
		return nil, err
	}
	pos := re.Position()
	if pos.InteractionID == "" {
		return nil, errors.New("interactions: no interaction id observed; cannot resume")
	}

	s, err := c.open(ctx, &StreamRequest{InteractionID: pos.InteractionID, LastEventID: pos.LastEventID}, re)
	if err != nil {
		return nil, err
	}
	prev.handOff(s)
	return s, nil
}

func (c *Client) open(ctx context.Context, req *StreamRequest, re *Reassembler) (*Stream, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("interactions: rate limit: %w", err)
		}
	}
	req.RequestID = uuid.NewString()

	attrs := []attribute.KeyValue{
		attribute.String("interactions.request_id", req.RequestID),
		attribute.String("interactions.id", req.InteractionID),
		attribute.String("interactions.resume_from", req.LastEventID),
	}
	ctx, span := c.tracer.Start(ctx, "interactions.stream",
		trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(attrs...))

	octx, openSpan := c.tracer.Start(ctx, "interactions.open")
	src, err := c.transport.Open(octx, req)
	if err != nil {
		openSpan.RecordError(err)
		openSpan.SetStatus(codes.Error, err.Error())
		openSpan.End()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		return nil, err
	}
	openSpan.End()

	if req.InteractionID == "" {
		log.Debug("interactions: stream opened (request %s)", req.RequestID)
	} else {
		log.Debug("interactions: stream reopened for %s after %q (request %s)", req.InteractionID, req.LastEventID, req.RequestID)
	}

	return NewStream(ctx, src, re, StreamOptions{
		BufferSize:  c.bufferSize,
		IdleTimeout: c.idleTimeout,
		Span:        span,
	}), nil
}
