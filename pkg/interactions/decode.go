// ABOUTME: Event frame decoder: turns one raw SSE frame into a typed Event
// ABOUTME: Unknown event and delta types pass through; malformed known frames yield DecodeError

package interactions

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/mailru/easyjson"
)

// Frame is one raw server-sent event as delivered by a transport.
type Frame struct {
	// Event is the SSE event name, often empty.
	Event string
	// Data is the JSON body.
	Data string
	// ID is the SSE id field, or "" when absent.
	ID string
}

// DecodeFrame decodes a single frame. The event type is taken from the body's
// event_type, then the SSE event name, then the body's type. The event id is
// taken from the SSE id field, then the body's event_id.
//
// An unrecognized event type decodes to *UnknownEvent. A recognized event type
// whose body is malformed returns a *DecodeError that still carries the event id.
func DecodeFrame(fr Frame) (Event, error) {
	data := bytes.TrimSpace([]byte(fr.Data))
	if len(data) == 0 {
		if fr.Event == "" || !isKnownEventType(EventType(fr.Event)) {
			return &UnknownEvent{eventMeta: withID(fr.ID), EventType: EventType(fr.Event)}, nil
		}
		return nil, &DecodeError{EventType: EventType(fr.Event), EventID: fr.ID, Err: errEmptyBody}
	}

	var env frameEnvelope
	if err := easyjson.Unmarshal(data, &env); err != nil {
		// Fields read before the syntax error are still trustworthy.
		typ := EventType(env.EventType)
		if typ == "" {
			typ = EventType(fr.Event)
		}
		id := fr.ID
		if id == "" {
			id = env.EventID
		}
		if typ != "" && !isKnownEventType(typ) {
			return &UnknownEvent{eventMeta: withID(id), EventType: typ, Raw: data}, nil
		}
		return nil, &DecodeError{EventType: typ, EventID: id, Err: err}
	}

	typ := EventType(env.EventType)
	if typ == "" {
		typ = EventType(fr.Event)
	}
	if typ == "" {
		typ = EventType(env.Type)
	}
	id := fr.ID
	if id == "" {
		id = env.EventID
	}

	ev, err := decodeEnvelope(typ, id, &env, data)
	if err != nil {
		return nil, &DecodeError{EventType: typ, EventID: id, Err: err}
	}
	return ev, nil
}

func isKnownEventType(t EventType) bool {
	switch t {
	case EventInteractionStart, EventInteractionComplete, EventInteractionStatusUpdate,
		EventContentStart, EventContentDelta, EventContentStop, EventError:
		return true
	}
	return false
}

func decodeEnvelope(typ EventType, id string, env *frameEnvelope, raw []byte) (Event, error) {
	meta := withID(id)

	switch typ {
	case EventInteractionStart:
		in, err := decodeInteraction(env)
		if err != nil {
			return nil, err
		}
		return &InteractionStartEvent{eventMeta: meta, Interaction: in}, nil

	case EventInteractionComplete:
		in, err := decodeInteraction(env)
		if err != nil {
			return nil, err
		}
		return &InteractionCompleteEvent{eventMeta: meta, Interaction: in}, nil

	case EventInteractionStatusUpdate:
		if env.Status == "" {
			return nil, fmt.Errorf("status update without status")
		}
		return &StatusUpdateEvent{eventMeta: meta, InteractionID: env.InteractionID, Status: Status(env.Status)}, nil

	case EventContentStart:
		if err := requireIndex(env); err != nil {
			return nil, err
		}
		ev := &ContentStartEvent{eventMeta: meta, Index: env.Index}
		if len(env.Content) > 0 {
			d, err := decodeDelta(env.Content)
			if err != nil {
				return nil, fmt.Errorf("content: %w", err)
			}
			ev.Content = d
		}
		return ev, nil

	case EventContentDelta:
		if err := requireIndex(env); err != nil {
			return nil, err
		}
		if len(env.Delta) == 0 {
			return nil, fmt.Errorf("content delta without delta")
		}
		d, err := decodeDelta(env.Delta)
		if err != nil {
			return nil, fmt.Errorf("delta: %w", err)
		}
		return &ContentDeltaEvent{eventMeta: meta, Index: env.Index, Delta: d}, nil

	case EventContentStop:
		if err := requireIndex(env); err != nil {
			return nil, err
		}
		return &ContentStopEvent{eventMeta: meta, Index: env.Index}, nil

	case EventError:
		ev := &ErrorEvent{eventMeta: meta, Code: env.Code, Message: env.Message}
		if len(env.Error) > 0 {
			var p errorPayload
			if err := easyjson.Unmarshal(env.Error, &p); err != nil {
				return nil, fmt.Errorf("error payload: %w", err)
			}
			if p.Code != "" {
				ev.Code = p.Code
			}
			if p.Message != "" {
				ev.Message = p.Message
			}
		}
		return ev, nil

	default:
		return &UnknownEvent{eventMeta: meta, EventType: typ, Raw: raw}, nil
	}
}

func requireIndex(env *frameEnvelope) error {
	if !env.HasIndex {
		return fmt.Errorf("missing index")
	}
	if env.Index < 0 {
		return fmt.Errorf("negative index %d", env.Index)
	}
	return nil
}

// decodeInteraction reads the nested interaction object, falling back to the
// top-level interaction_id/status pair some servers send on lifecycle frames.
func decodeInteraction(env *frameEnvelope) (*Interaction, error) {
	if len(env.Interaction) == 0 {
		if env.InteractionID == "" && env.Status == "" {
			return nil, fmt.Errorf("missing interaction")
		}
		return &Interaction{ID: env.InteractionID, Status: Status(env.Status)}, nil
	}
	var in Interaction
	if err := json.Unmarshal(env.Interaction, &in); err != nil {
		return nil, fmt.Errorf("interaction: %w", err)
	}
	for i := range in.Outputs {
		in.Outputs[i].Index = i
	}
	return &in, nil
}

// wireDelta is the union of all delta fields on the wire.
type wireDelta struct {
	Type        Kind            `json:"type"`
	Text        string          `json:"text"`
	Annotations []Annotation    `json:"annotations"`
	Data        string          `json:"data"`
	URI         string          `json:"uri"`
	MimeType    string          `json:"mime_type"`
	Resolution  string          `json:"resolution"`
	Signature   string          `json:"signature"`
	Content     json.RawMessage `json:"content"`
	Summary     json.RawMessage `json:"summary"`
	ID          string          `json:"id"`
	CallID      string          `json:"call_id"`
	Name        string          `json:"name"`
	ServerName  string          `json:"server_name"`
	Arguments   json.RawMessage `json:"arguments"`
	Result      json.RawMessage `json:"result"`
	IsError     bool            `json:"is_error"`
}

func decodeDelta(raw []byte) (Delta, error) {
	var w wireDelta
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, err
	}

	switch {
	case w.Type == KindText:
		return TextDelta{Text: w.Text, Annotations: w.Annotations}, nil
	case w.Type.IsMedia():
		return MediaDelta{Type: w.Type, Data: w.Data, URI: w.URI, MimeType: w.MimeType, Resolution: w.Resolution}, nil
	case w.Type == KindThoughtSummary:
		d := ThoughtSummaryDelta{}
		if len(w.Content) > 0 && !bytes.Equal(w.Content, []byte("null")) {
			inner, err := decodeDelta(w.Content)
			if err != nil {
				return nil, fmt.Errorf("thought summary content: %w", err)
			}
			d.Content = inner
		}
		return d, nil
	case w.Type == KindThoughtSignature:
		return ThoughtSignatureDelta{Signature: w.Signature}, nil
	case w.Type == KindThought:
		return decodeThought(w)
	case w.Type.IsCall():
		args, err := fragment(w.Arguments)
		if err != nil {
			return nil, fmt.Errorf("arguments: %w", err)
		}
		return CallDelta{Type: w.Type, ID: w.ID, Name: w.Name, ServerName: w.ServerName, Arguments: args, Signature: w.Signature}, nil
	case w.Type.IsResult():
		res, err := fragment(w.Result)
		if err != nil {
			return nil, fmt.Errorf("result: %w", err)
		}
		return ResultDelta{
			Type: w.Type, CallID: w.CallID, Name: w.Name, ServerName: w.ServerName,
			Result: res, IsError: w.IsError, Signature: w.Signature,
		}, nil
	default:
		return UnknownDelta{Type: w.Type, Raw: append([]byte(nil), raw...)}, nil
	}
}

// decodeThought reads a thought content object. Its summary is a list of text
// or image contents.
func decodeThought(w wireDelta) (Delta, error) {
	d := ThoughtDelta{Signature: w.Signature}
	if len(w.Summary) == 0 || bytes.Equal(w.Summary, []byte("null")) {
		return d, nil
	}
	var parts []json.RawMessage
	if err := json.Unmarshal(w.Summary, &parts); err != nil {
		return nil, fmt.Errorf("thought summary: %w", err)
	}
	for _, raw := range parts {
		part, err := decodeDelta(raw)
		if err != nil {
			return nil, fmt.Errorf("thought summary: %w", err)
		}
		d.Summary = append(d.Summary, part)
	}
	return d, nil
}

// fragment returns the text to append for an arguments or result field. A JSON
// string is an already-serialized fragment and is unquoted; any other JSON value
// is appended verbatim.
func fragment(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	return string(raw), nil
}
