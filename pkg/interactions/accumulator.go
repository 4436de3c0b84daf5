// ABOUTME: Delta accumulator: merges per-index content deltas into blocks and seals them on stop
// ABOUTME: Tolerates implicit starts, duplicate starts/stops, out-of-order sealing and kind conflicts

package interactions

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/mauromedda/genai-go/internal/log"
)

// MutationOp describes what applying an event did to the accumulator.
type MutationOp int

const (
	// MutationNone means the event was not a content event.
	MutationNone MutationOp = iota
	MutationOpened
	MutationAppended
	MutationSealed
	// MutationIgnored means the event was dropped: a duplicate, a frame for an
	// already sealed block, or a delta whose kind conflicts with its block.
	MutationIgnored
)

func (op MutationOp) String() string {
	switch op {
	case MutationOpened:
		return "opened"
	case MutationAppended:
		return "appended"
	case MutationSealed:
		return "sealed"
	case MutationIgnored:
		return "ignored"
	default:
		return "none"
	}
}

// Mutation is the outcome of Accumulator.Apply.
type Mutation struct {
	Op    MutationOp
	Index int
	Kind  Kind
	// Implicit is set when a delta or stop created its block without a start.
	Implicit bool
	// Block is the sealed block for MutationSealed.
	Block *Content
	// Reason explains MutationIgnored.
	Reason string
}

// blockState is one in-progress content block.
type blockState struct {
	kind        Kind
	text        strings.Builder
	annotations []Annotation
	data        strings.Builder
	uri         string
	mimeType    string
	resolution  string
	signature   string
	summary     []Content
	id          string
	callID      string
	name        string
	serverName  string
	args        strings.Builder
	result      strings.Builder
	isError     bool
}

// Accumulator reassembles content blocks from content.start/delta/stop events.
// It is not safe for concurrent use; one stream owns one accumulator.
type Accumulator struct {
	open   map[int]*blockState
	sealed map[int]*Content
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		open:   make(map[int]*blockState),
		sealed: make(map[int]*Content),
	}
}

// Apply merges one event. Non-content events return MutationNone.
func (a *Accumulator) Apply(ev Event) Mutation {
	switch e := ev.(type) {
	case *ContentStartEvent:
		return a.start(e)
	case *ContentDeltaEvent:
		return a.delta(e)
	case *ContentStopEvent:
		return a.stop(e)
	default:
		return Mutation{Op: MutationNone}
	}
}

func (a *Accumulator) start(e *ContentStartEvent) Mutation {
	if c, ok := a.sealed[e.Index]; ok {
		return a.ignore(e.Index, c.Kind, "start for sealed block")
	}
	if b, ok := a.open[e.Index]; ok {
		return a.ignore(e.Index, b.kind, "duplicate start")
	}

	b := &blockState{}
	a.open[e.Index] = b
	if e.Content != nil {
		if _, unknown := e.Content.(UnknownDelta); !unknown {
			b.kind = blockKind(e.Content.Kind())
			b.merge(e.Content)
		}
	}
	return Mutation{Op: MutationOpened, Index: e.Index, Kind: b.kind}
}

func (a *Accumulator) delta(e *ContentDeltaEvent) Mutation {
	if c, ok := a.sealed[e.Index]; ok {
		return a.ignore(e.Index, c.Kind, "delta for sealed block")
	}
	if _, unknown := e.Delta.(UnknownDelta); unknown || e.Delta == nil {
		return a.ignore(e.Index, "", "unknown delta kind")
	}

	dk := blockKind(e.Delta.Kind())
	b, ok := a.open[e.Index]
	implicit := !ok
	if implicit {
		b = &blockState{kind: dk}
		a.open[e.Index] = b
	}
	if b.kind == "" {
		b.kind = dk
	}
	if b.kind != dk {
		return a.ignore(e.Index, b.kind, "delta kind "+string(dk)+" conflicts with block kind "+string(b.kind))
	}

	b.merge(e.Delta)
	return Mutation{Op: MutationAppended, Index: e.Index, Kind: b.kind, Implicit: implicit}
}

func (a *Accumulator) stop(e *ContentStopEvent) Mutation {
	if c, ok := a.sealed[e.Index]; ok {
		return a.ignore(e.Index, c.Kind, "duplicate stop")
	}
	b, ok := a.open[e.Index]
	if !ok {
		b = &blockState{}
	}
	delete(a.open, e.Index)

	c := b.seal(e.Index)
	a.sealed[e.Index] = &c
	out := c.clone()
	return Mutation{Op: MutationSealed, Index: e.Index, Kind: c.Kind, Implicit: !ok, Block: &out}
}

func (a *Accumulator) ignore(index int, kind Kind, reason string) Mutation {
	log.Debug("interactions: ignoring content frame for index %d: %s", index, reason)
	return Mutation{Op: MutationIgnored, Index: index, Kind: kind, Reason: reason}
}

// Outputs returns copies of the sealed blocks ordered by index.
func (a *Accumulator) Outputs() []Content {
	idx := make([]int, 0, len(a.sealed))
	for i := range a.sealed {
		idx = append(idx, i)
	}
	sort.Ints(idx)

	out := make([]Content, 0, len(idx))
	for _, i := range idx {
		out = append(out, a.sealed[i].clone())
	}
	return out
}

// Block returns a snapshot of the block at index, open or sealed. Open call
// blocks carry their raw, possibly incomplete argument text.
func (a *Accumulator) Block(index int) (Content, bool) {
	if c, ok := a.sealed[index]; ok {
		return c.clone(), true
	}
	if b, ok := a.open[index]; ok {
		return b.snapshot(index), true
	}
	return Content{}, false
}

// OpenIndexes returns the indexes of blocks not yet sealed, ascending.
func (a *Accumulator) OpenIndexes() []int {
	idx := make([]int, 0, len(a.open))
	for i := range a.open {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	return idx
}

// Sealed reports whether the block at index has been sealed.
func (a *Accumulator) Sealed(index int) bool {
	_, ok := a.sealed[index]
	return ok
}

// Discard drops all open blocks without sealing them. Sealed blocks are kept.
func (a *Accumulator) Discard() {
	a.open = make(map[int]*blockState)
}

func (b *blockState) merge(d Delta) {
	switch d := d.(type) {
	case TextDelta:
		b.text.WriteString(d.Text)
		b.annotations = append(b.annotations, d.Annotations...)
	case MediaDelta:
		b.data.WriteString(d.Data)
		overwrite(&b.uri, d.URI)
		overwrite(&b.mimeType, d.MimeType)
		overwrite(&b.resolution, d.Resolution)
	case ThoughtSummaryDelta:
		b.summary = mergeSummary(b.summary, d.Content)
	case ThoughtSignatureDelta:
		overwrite(&b.signature, d.Signature)
	case ThoughtDelta:
		overwrite(&b.signature, d.Signature)
		for _, part := range d.Summary {
			b.summary = mergeSummary(b.summary, part)
		}
	case CallDelta:
		setOnce(&b.id, d.ID)
		setOnce(&b.name, d.Name)
		setOnce(&b.serverName, d.ServerName)
		overwrite(&b.signature, d.Signature)
		b.args.WriteString(d.Arguments)
	case ResultDelta:
		setOnce(&b.callID, d.CallID)
		setOnce(&b.name, d.Name)
		setOnce(&b.serverName, d.ServerName)
		overwrite(&b.signature, d.Signature)
		b.result.WriteString(d.Result)
		b.isError = b.isError || d.IsError
	}
}

// mergeSummary applies a nested thought summary fragment with the text and
// media rules against the last summary part of the same kind.
func mergeSummary(parts []Content, d Delta) []Content {
	switch d := d.(type) {
	case TextDelta:
		if n := len(parts); n > 0 && parts[n-1].Kind == KindText {
			parts[n-1].Text += d.Text
			parts[n-1].Annotations = append(parts[n-1].Annotations, d.Annotations...)
			return parts
		}
		return append(parts, Content{Kind: KindText, Index: len(parts), Text: d.Text, Annotations: d.Annotations})
	case MediaDelta:
		if n := len(parts); n > 0 && parts[n-1].Kind == d.Type && parts[n-1].URI == "" && d.URI == "" {
			parts[n-1].Data += d.Data
			overwrite(&parts[n-1].MimeType, d.MimeType)
			overwrite(&parts[n-1].Resolution, d.Resolution)
			return parts
		}
		return append(parts, Content{
			Kind: d.Type, Index: len(parts), Data: d.Data, URI: d.URI,
			MimeType: d.MimeType, Resolution: d.Resolution,
		})
	default:
		return parts
	}
}

func (b *blockState) snapshot(index int) Content {
	c := Content{
		Kind:       b.kind,
		Index:      index,
		Text:       b.text.String(),
		Data:       b.data.String(),
		URI:        b.uri,
		MimeType:   b.mimeType,
		Resolution: b.resolution,
		Signature:  b.signature,
		ID:         b.id,
		CallID:     b.callID,
		Name:       b.name,
		ServerName: b.serverName,
		IsError:    b.isError,
	}
	if len(b.annotations) > 0 {
		c.Annotations = append([]Annotation(nil), b.annotations...)
	}
	if len(b.summary) > 0 {
		c.Summary = make([]Content, len(b.summary))
		for i := range b.summary {
			c.Summary[i] = b.summary[i].clone()
		}
	}
	if b.args.Len() > 0 {
		c.Arguments = json.RawMessage(b.args.String())
	}
	if b.result.Len() > 0 {
		c.Result = json.RawMessage(b.result.String())
	}
	return c
}

// seal builds the immutable block. Argument and result text that is not
// valid JSON once complete is kept as a JSON string.
func (b *blockState) seal(index int) Content {
	c := b.snapshot(index)
	c.Arguments = normalizeJSON(b.args.String())
	c.Result = normalizeJSON(b.result.String())
	return c
}

func normalizeJSON(s string) json.RawMessage {
	if s == "" {
		return nil
	}
	if json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}
	quoted, _ := json.Marshal(s)
	return quoted
}

func overwrite(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setOnce(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}
