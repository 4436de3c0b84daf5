// ABOUTME: Frame envelope read with easyjson's lexer: discriminator, id, index, raw payloads
// ABOUTME: Hand-written UnmarshalEasyJSON keeps the per-frame hot path reflection-free

package interactions

import (
	"github.com/mailru/easyjson"
	"github.com/mailru/easyjson/jlexer"
)

// frameEnvelope is the top-level JSON object of every stream frame. Nested
// payloads are kept raw and decoded only for the event type that needs them.
type frameEnvelope struct {
	EventType     string
	Type          string
	EventID       string
	Index         int
	HasIndex      bool
	InteractionID string
	Status        string
	Code          string
	Message       string

	Interaction []byte
	Content     []byte
	Delta       []byte
	Error       []byte
}

var _ easyjson.Unmarshaler = (*frameEnvelope)(nil)

// UnmarshalEasyJSON implements easyjson.Unmarshaler.
func (e *frameEnvelope) UnmarshalEasyJSON(in *jlexer.Lexer) {
	isTopLevel := in.IsStart()
	if in.IsNull() {
		if isTopLevel {
			in.Consumed()
		}
		in.Skip()
		return
	}
	in.Delim('{')
	for !in.IsDelim('}') {
		key := in.UnsafeFieldName(false)
		in.WantColon()
		if in.IsNull() {
			in.Skip()
			in.WantComma()
			continue
		}
		switch key {
		case "event_type":
			e.EventType = in.String()
		case "type":
			e.Type = in.String()
		case "event_id":
			e.EventID = in.String()
		case "index":
			e.Index = in.Int()
			e.HasIndex = true
		case "interaction_id":
			e.InteractionID = in.String()
		case "status":
			e.Status = in.String()
		case "code":
			e.Code = rawScalar(in)
		case "message":
			e.Message = in.String()
		case "interaction":
			e.Interaction = copyRaw(in.Raw())
		case "content":
			e.Content = copyRaw(in.Raw())
		case "delta":
			e.Delta = copyRaw(in.Raw())
		case "error":
			e.Error = copyRaw(in.Raw())
		default:
			in.SkipRecursive()
		}
		in.WantComma()
	}
	in.Delim('}')
	if isTopLevel {
		in.Consumed()
	}
}

// errorPayload is the nested object of an "error" frame.
type errorPayload struct {
	Code    string
	Message string
}

// UnmarshalEasyJSON implements easyjson.Unmarshaler.
func (p *errorPayload) UnmarshalEasyJSON(in *jlexer.Lexer) {
	isTopLevel := in.IsStart()
	if in.IsNull() {
		if isTopLevel {
			in.Consumed()
		}
		in.Skip()
		return
	}
	in.Delim('{')
	for !in.IsDelim('}') {
		key := in.UnsafeFieldName(false)
		in.WantColon()
		if in.IsNull() {
			in.Skip()
			in.WantComma()
			continue
		}
		switch key {
		case "code":
			p.Code = rawScalar(in)
		case "message":
			p.Message = in.String()
		default:
			in.SkipRecursive()
		}
		in.WantComma()
	}
	in.Delim('}')
	if isTopLevel {
		in.Consumed()
	}
}

// rawScalar reads a string or a bare scalar (servers send numeric codes too)
// and returns its text.
func rawScalar(in *jlexer.Lexer) string {
	raw := in.Raw()
	if len(raw) > 0 && raw[0] == '"' {
		l := jlexer.Lexer{Data: raw}
		return l.String()
	}
	return string(raw)
}

func copyRaw(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
