// ABOUTME: Core Interactions data model: Interaction, Status, Usage, Content blocks, Annotations
// ABOUTME: Content is the reassembled result of one indexed output block

package interactions

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mauromedda/genai-go/pkg/interactions/partjson"
)

// Status is the server-reported status of an interaction.
type Status string

const (
	StatusQueued         Status = "queued"
	StatusInProgress     Status = "in_progress"
	StatusRequiresAction Status = "requires_action"
	StatusCompleted      Status = "completed"
	StatusFailed         Status = "failed"
	StatusCancelled      Status = "cancelled"
)

// Usage holds token counters for an interaction.
type Usage struct {
	TotalInputTokens   int `json:"total_input_tokens,omitempty"`
	TotalOutputTokens  int `json:"total_output_tokens,omitempty"`
	TotalThoughtTokens int `json:"total_thought_tokens,omitempty"`
	TotalCachedTokens  int `json:"total_cached_tokens,omitempty"`
	TotalToolUseTokens int `json:"total_tool_use_tokens,omitempty"`
	TotalTokens        int `json:"total_tokens,omitempty"`
}

// Interaction is one request/response exchange with a model or agent.
type Interaction struct {
	ID                    string     `json:"id"`
	Model                 string     `json:"model,omitempty"`
	Agent                 string     `json:"agent,omitempty"`
	Status                Status     `json:"status,omitempty"`
	Role                  string     `json:"role,omitempty"`
	Outputs               []Content  `json:"outputs,omitempty"`
	Usage                 *Usage     `json:"usage,omitempty"`
	PreviousInteractionID string     `json:"previous_interaction_id,omitempty"`
	Created               *time.Time `json:"created,omitempty"`
	Updated               *time.Time `json:"updated,omitempty"`
}

// clone returns a copy that shares no slices or pointers with i.
func (i *Interaction) clone() *Interaction {
	if i == nil {
		return nil
	}
	out := *i
	if i.Outputs != nil {
		out.Outputs = make([]Content, len(i.Outputs))
		for k := range i.Outputs {
			out.Outputs[k] = i.Outputs[k].clone()
		}
	}
	if i.Usage != nil {
		u := *i.Usage
		out.Usage = &u
	}
	return &out
}

// fillGaps copies identity fields of src that i leaves empty. Status,
// outputs and usage are left alone.
func (i *Interaction) fillGaps(src *Interaction) {
	fill := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	fill(&i.ID, src.ID)
	fill(&i.Model, src.Model)
	fill(&i.Agent, src.Agent)
	fill(&i.Role, src.Role)
	fill(&i.PreviousInteractionID, src.PreviousInteractionID)
	if i.Created == nil && src.Created != nil {
		c := *src.Created
		i.Created = &c
	}
}

// Text concatenates the text of all text outputs in order.
func (i *Interaction) Text() string {
	if i == nil {
		return ""
	}
	var sb strings.Builder
	for _, c := range i.Outputs {
		if c.Kind == KindText {
			sb.WriteString(c.Text)
		}
	}
	return sb.String()
}

// Annotation attributes a byte range of a text block to a source. Offsets are
// byte offsets into the final concatenated text of the block.
type Annotation struct {
	StartIndex int    `json:"start_index"`
	EndIndex   int    `json:"end_index"`
	Source     string `json:"source,omitempty"`
}

// Content is one reassembled output block. Which fields are populated depends
// on Kind: text blocks use Text and Annotations, media blocks use Data, URI,
// MimeType and Resolution, call blocks use ID, Name and Arguments, result
// blocks use CallID, Name, Result and IsError, thought blocks use Summary and
// Signature.
type Content struct {
	Kind        Kind         `json:"type"`
	Index       int          `json:"-"`
	Text        string       `json:"text,omitempty"`
	Annotations []Annotation `json:"annotations,omitempty"`

	Data       string `json:"data,omitempty"`
	URI        string `json:"uri,omitempty"`
	MimeType   string `json:"mime_type,omitempty"`
	Resolution string `json:"resolution,omitempty"`

	Signature string    `json:"signature,omitempty"`
	Summary   []Content `json:"summary,omitempty"`

	ID         string          `json:"id,omitempty"`
	CallID     string          `json:"call_id,omitempty"`
	Name       string          `json:"name,omitempty"`
	ServerName string          `json:"server_name,omitempty"`
	Arguments  json.RawMessage `json:"arguments,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	IsError    bool            `json:"is_error,omitempty"`
}

func (c Content) clone() Content {
	out := c
	if c.Annotations != nil {
		out.Annotations = append([]Annotation(nil), c.Annotations...)
	}
	if c.Summary != nil {
		out.Summary = make([]Content, len(c.Summary))
		for i := range c.Summary {
			out.Summary[i] = c.Summary[i].clone()
		}
	}
	if c.Arguments != nil {
		out.Arguments = append(json.RawMessage(nil), c.Arguments...)
	}
	if c.Result != nil {
		out.Result = append(json.RawMessage(nil), c.Result...)
	}
	return out
}

// PartialArguments parses the argument text of a call block that may still be
// streaming. Missing or truncated members are dropped.
func (c Content) PartialArguments() map[string]any {
	return partjson.Parse(string(c.Arguments))
}

// DecodeArguments strictly unmarshals the complete argument text into v.
func (c Content) DecodeArguments(v any) error {
	if len(c.Arguments) == 0 {
		return fmt.Errorf("content %d (%s) has no arguments", c.Index, c.Kind)
	}
	if err := json.Unmarshal(c.Arguments, v); err != nil {
		return fmt.Errorf("decoding arguments of %s %q: %w", c.Kind, c.Name, err)
	}
	return nil
}

// SummaryText concatenates the text parts of a thought block's summary.
func (c Content) SummaryText() string {
	var sb strings.Builder
	for _, part := range c.Summary {
		if part.Kind == KindText {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}
