// ABOUTME: Headless output formatters for streamed interactions: text, json, and stream-json
// ABOUTME: Text writes deltas as they arrive; json emits one object at the end; stream-json one line per event

package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mauromedda/genai-go/internal/telemetry"
	"github.com/mauromedda/genai-go/pkg/interactions"
)

// Format selects an output formatter.
type Format string

const (
	FormatText       Format = "text"
	FormatJSON       Format = "json"
	FormatStreamJSON Format = "stream-json"
)

// ParseFormat validates a format name. An empty name selects text.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON, FormatStreamJSON:
		return Format(s), nil
	}
	return "", fmt.Errorf("unknown output format %q (want text, json, or stream-json)", s)
}

const previewWidth = 80

// Options tunes formatter output.
type Options struct {
	// Thoughts includes thought summaries in text output.
	Thoughts bool
}

// Formatter renders the events of one interaction stream.
type Formatter interface {
	// Event renders one reassembled event.
	Event(ev interactions.Event) error
	// Finish renders the final state. streamErr is the error that ended the
	// stream; io.EOF means a clean finish.
	Finish(final *interactions.Interaction, pos interactions.Position, streamErr error) error
}

// New returns a formatter writing results to out and diagnostics to errOut.
func New(f Format, out, errOut io.Writer, opts Options) Formatter {
	switch f {
	case FormatJSON:
		return &jsonFormatter{out: out}
	case FormatStreamJSON:
		return &streamJSONFormatter{out: out}
	default:
		return &textFormatter{out: out, errOut: errOut, opts: opts}
	}
}

// Describe summarizes a sealed block in one line: calls with an argument
// preview, results with their outcome, media with size and type.
func Describe(c *interactions.Content) string {
	switch {
	case c == nil:
		return ""
	case c.Kind.IsCall():
		name := c.Name
		if name == "" {
			name = string(c.Kind)
		}
		return fmt.Sprintf("[call %s(%s)]", name, Preview(string(c.Arguments), previewWidth))
	case c.Kind.IsResult():
		state := "ok"
		if c.IsError {
			state = "error"
		}
		return fmt.Sprintf("[result %s %s: %s]", c.Kind, state, Preview(string(c.Result), previewWidth))
	case c.Kind.IsMedia():
		if c.URI != "" {
			return fmt.Sprintf("[%s %s %s]", c.Kind, c.MimeType, c.URI)
		}
		return fmt.Sprintf("[%s %s, %d bytes]", c.Kind, c.MimeType, len(c.Data)*3/4)
	case c.Kind == interactions.KindThought:
		return "[thought] " + Preview(c.SummaryText(), previewWidth)
	}
	return ""
}

// ResumeHint is the command line suffix that continues an interrupted stream.
func ResumeHint(pos interactions.Position) string {
	if pos.InteractionID == "" {
		return ""
	}
	hint := "--resume " + pos.InteractionID
	if pos.LastEventID != "" {
		hint += " --last-event-id " + pos.LastEventID
	}
	return hint
}

// textFormatter streams text deltas to out and everything else to errOut.
type textFormatter struct {
	out, errOut io.Writer
	opts        Options
	lastByte    byte
	wrote       bool
}

func (f *textFormatter) Event(ev interactions.Event) error {
	switch e := ev.(type) {
	case *interactions.ContentDeltaEvent:
		switch d := e.Delta.(type) {
		case interactions.TextDelta:
			return f.text(d.Text)
		case interactions.ThoughtSummaryDelta:
			if td, ok := d.Content.(interactions.TextDelta); ok && f.opts.Thoughts {
				_, err := io.WriteString(f.errOut, td.Text)
				return err
			}
		}
	case *interactions.ContentStopEvent:
		if e.Content == nil || e.Content.Kind == interactions.KindText {
			return nil
		}
		if e.Content.Kind == interactions.KindThought && !f.opts.Thoughts {
			return nil
		}
		if line := Describe(e.Content); line != "" {
			_, err := fmt.Fprintln(f.errOut, line)
			return err
		}
	case *interactions.ErrorEvent:
		_, err := fmt.Fprintf(f.errOut, "error: %v\n", e)
		return err
	}
	return nil
}

func (f *textFormatter) text(s string) error {
	if s == "" {
		return nil
	}
	if _, err := io.WriteString(f.out, s); err != nil {
		return err
	}
	f.wrote = true
	f.lastByte = s[len(s)-1]
	return nil
}

func (f *textFormatter) Finish(_ *interactions.Interaction, pos interactions.Position, streamErr error) error {
	if f.wrote && f.lastByte != '\n' {
		if _, err := io.WriteString(f.out, "\n"); err != nil {
			return err
		}
	}
	if streamErr == nil || errors.Is(streamErr, io.EOF) {
		return nil
	}
	if _, err := fmt.Fprintf(f.errOut, "error: %v\n", streamErr); err != nil {
		return err
	}
	if hint := ResumeHint(pos); hint != "" && errors.Is(streamErr, interactions.ErrIncomplete) {
		_, err := fmt.Fprintf(f.errOut, "resume with: %s\n", hint)
		return err
	}
	return nil
}

// jsonFormatter collects errors and writes a single JSON object at the end.
type jsonFormatter struct {
	out    io.Writer
	errors []string
}

type jsonOutput struct {
	Interaction *interactions.Interaction `json:"interaction,omitempty"`
	Text        string                    `json:"text"`
	Cursor      interactions.Position     `json:"cursor"`
	Errors      []string                  `json:"errors,omitempty"`
	Incomplete  bool                      `json:"incomplete,omitempty"`
	CostUSD     *float64                  `json:"estimated_cost_usd,omitempty"`
}

func (f *jsonFormatter) Event(ev interactions.Event) error {
	if e, ok := ev.(*interactions.ErrorEvent); ok {
		f.errors = append(f.errors, e.Error())
	}
	return nil
}

func (f *jsonFormatter) Finish(final *interactions.Interaction, pos interactions.Position, streamErr error) error {
	out := jsonOutput{
		Interaction: final,
		Text:        final.Text(),
		Cursor:      pos,
		Errors:      f.errors,
	}
	if final != nil {
		if cost, ok := telemetry.EstimateCost(final.Model, final.Usage); ok {
			out.CostUSD = &cost
		}
	}
	if streamErr != nil && !errors.Is(streamErr, io.EOF) {
		out.Incomplete = true
		// The wrapped server error was already collected from its event.
		var ie *interactions.IncompleteError
		if !errors.As(streamErr, &ie) || ie.LastError == nil {
			out.Errors = append(out.Errors, streamErr.Error())
		}
	}
	return writeLine(f.out, out)
}

// streamJSONFormatter outputs one JSON line per event.
type streamJSONFormatter struct {
	out io.Writer
}

type streamEvent struct {
	Type        string                    `json:"type"`
	EventID     string                    `json:"event_id,omitempty"`
	Index       *int                      `json:"index,omitempty"`
	Kind        interactions.Kind         `json:"kind,omitempty"`
	Text        string                    `json:"text,omitempty"`
	Status      interactions.Status       `json:"status,omitempty"`
	Content     *interactions.Content     `json:"content,omitempty"`
	Interaction *interactions.Interaction `json:"interaction,omitempty"`
	Cursor      *interactions.Position    `json:"cursor,omitempty"`
	Error       string                    `json:"error,omitempty"`
}

func (f *streamJSONFormatter) Event(ev interactions.Event) error {
	out := streamEvent{Type: string(ev.Type()), EventID: ev.EventID()}
	switch e := ev.(type) {
	case *interactions.InteractionStartEvent:
		out.Interaction = e.Interaction
	case *interactions.InteractionCompleteEvent:
		out.Interaction = e.Interaction
	case *interactions.StatusUpdateEvent:
		out.Status = e.Status
	case *interactions.ContentStartEvent:
		out.Index = &e.Index
		if e.Content != nil {
			out.Kind = e.Content.Kind()
		}
	case *interactions.ContentDeltaEvent:
		out.Index = &e.Index
		out.Kind = e.Delta.Kind()
		out.Text = deltaText(e.Delta)
	case *interactions.ContentStopEvent:
		out.Index = &e.Index
		out.Content = e.Content
	case *interactions.ErrorEvent:
		out.Error = e.Error()
	}
	return writeLine(f.out, out)
}

func (f *streamJSONFormatter) Finish(_ *interactions.Interaction, pos interactions.Position, streamErr error) error {
	out := streamEvent{Type: "end", Cursor: &pos}
	if streamErr != nil && !errors.Is(streamErr, io.EOF) {
		out.Error = streamErr.Error()
	}
	return writeLine(f.out, out)
}

// deltaText extracts the human-readable fragment of a delta, if any.
func deltaText(d interactions.Delta) string {
	switch d := d.(type) {
	case interactions.TextDelta:
		return d.Text
	case interactions.ThoughtSummaryDelta:
		if td, ok := d.Content.(interactions.TextDelta); ok {
			return td.Text
		}
	case interactions.ThoughtDelta:
		var b strings.Builder
		for _, part := range d.Summary {
			if td, ok := part.(interactions.TextDelta); ok {
				b.WriteString(td.Text)
			}
		}
		return b.String()
	case interactions.CallDelta:
		return d.Arguments
	case interactions.ResultDelta:
		return d.Result
	}
	return ""
}

func writeLine(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	var sb strings.Builder
	sb.Grow(len(data) + 1)
	sb.Write(data)
	sb.WriteByte('\n')
	_, err = io.WriteString(w, sb.String())
	return err
}
