// ABOUTME: Delta tagged union: incremental fragments of one content block, keyed by Kind
// ABOUTME: Kind tracks the wire discriminators; blockKind folds thought deltas onto one block kind

package interactions

// Kind is a content or delta type discriminator as it appears on the wire.
type Kind string

const (
	KindText                Kind = "text"
	KindImage               Kind = "image"
	KindAudio               Kind = "audio"
	KindVideo               Kind = "video"
	KindDocument            Kind = "document"
	KindThought             Kind = "thought"
	KindThoughtSummary      Kind = "thought_summary"
	KindThoughtSignature    Kind = "thought_signature"
	KindFunctionCall        Kind = "function_call"
	KindFunctionResult      Kind = "function_result"
	KindCodeExecutionCall   Kind = "code_execution_call"
	KindCodeExecutionResult Kind = "code_execution_result"
	KindURLContextCall      Kind = "url_context_call"
	KindURLContextResult    Kind = "url_context_result"
	KindGoogleSearchCall    Kind = "google_search_call"
	KindGoogleSearchResult  Kind = "google_search_result"
	KindMCPServerToolCall   Kind = "mcp_server_tool_call"
	KindMCPServerToolResult Kind = "mcp_server_tool_result"
	KindFileSearchCall      Kind = "file_search_call"
	KindFileSearchResult    Kind = "file_search_result"
)

// IsMedia reports whether k carries base64 data or a URI.
func (k Kind) IsMedia() bool {
	switch k {
	case KindImage, KindAudio, KindVideo, KindDocument:
		return true
	}
	return false
}

// IsCall reports whether k is a tool invocation issued by the model.
func (k Kind) IsCall() bool {
	switch k {
	case KindFunctionCall, KindCodeExecutionCall, KindURLContextCall,
		KindGoogleSearchCall, KindMCPServerToolCall, KindFileSearchCall:
		return true
	}
	return false
}

// IsResult reports whether k is the outcome of a tool invocation.
func (k Kind) IsResult() bool {
	switch k {
	case KindFunctionResult, KindCodeExecutionResult, KindURLContextResult,
		KindGoogleSearchResult, KindMCPServerToolResult, KindFileSearchResult:
		return true
	}
	return false
}

// blockKind maps a delta kind to the kind of the block it accumulates into.
// Thought summaries and signatures share one thought block.
func blockKind(k Kind) Kind {
	switch k {
	case KindThoughtSummary, KindThoughtSignature:
		return KindThought
	}
	return k
}

// Delta is an incremental fragment of one content block. The concrete types
// are TextDelta, MediaDelta, ThoughtDelta, ThoughtSummaryDelta,
// ThoughtSignatureDelta, CallDelta, ResultDelta and UnknownDelta.
type Delta interface {
	Kind() Kind
	isDelta()
}

// TextDelta is a text fragment with optional annotations.
type TextDelta struct {
	Text        string
	Annotations []Annotation
}

// MediaDelta is a fragment of an image, audio, video or document block.
type MediaDelta struct {
	Type       Kind
	Data       string // base64 fragment
	URI        string
	MimeType   string
	Resolution string
}

// ThoughtSummaryDelta carries a nested text or image fragment of a thought summary.
type ThoughtSummaryDelta struct {
	Content Delta
}

// ThoughtSignatureDelta carries the opaque provenance signature of a thought.
type ThoughtSignatureDelta struct {
	Signature string
}

// ThoughtDelta is a whole thought content object, usually the seed of a
// content.start. Summary holds text or image fragments in order.
type ThoughtDelta struct {
	Signature string
	Summary   []Delta
}

// CallDelta is a fragment of a tool call: function, code execution, URL
// context, Google Search, MCP server tool or file search. Arguments holds raw
// argument text which may split a JSON value mid-token.
type CallDelta struct {
	Type       Kind
	ID         string
	Name       string
	ServerName string
	Arguments  string
	Signature  string
}

// ResultDelta is a fragment of a tool result.
type ResultDelta struct {
	Type       Kind
	CallID     string
	Name       string
	ServerName string
	Result     string
	IsError    bool
	Signature  string
}

// UnknownDelta preserves a delta whose discriminator this SDK does not know.
type UnknownDelta struct {
	Type Kind
	Raw  []byte
}

func (TextDelta) Kind() Kind             { return KindText }
func (d MediaDelta) Kind() Kind          { return d.Type }
func (ThoughtSummaryDelta) Kind() Kind   { return KindThoughtSummary }
func (ThoughtSignatureDelta) Kind() Kind { return KindThoughtSignature }
func (ThoughtDelta) Kind() Kind          { return KindThought }
func (d CallDelta) Kind() Kind           { return d.Type }
func (d ResultDelta) Kind() Kind         { return d.Type }
func (d UnknownDelta) Kind() Kind        { return d.Type }

func (TextDelta) isDelta()             {}
func (MediaDelta) isDelta()            {}
func (ThoughtSummaryDelta) isDelta()   {}
func (ThoughtSignatureDelta) isDelta() {}
func (ThoughtDelta) isDelta()          {}
func (CallDelta) isDelta()             {}
func (ResultDelta) isDelta()           {}
func (UnknownDelta) isDelta()          {}
