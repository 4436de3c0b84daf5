// ABOUTME: Event tagged union for interaction stream frames, keyed by event type
// ABOUTME: Every variant carries the optional server-issued event id used for resumption

package interactions

import "fmt"

// EventType is the wire discriminator of a stream event.
type EventType string

const (
	EventInteractionStart        EventType = "interaction.start"
	EventInteractionComplete     EventType = "interaction.complete"
	EventInteractionStatusUpdate EventType = "interaction.status_update"
	EventContentStart            EventType = "content.start"
	EventContentDelta            EventType = "content.delta"
	EventContentStop             EventType = "content.stop"
	EventError                   EventType = "error"
)

// Event is one decoded stream frame. The concrete types are
// *InteractionStartEvent, *InteractionCompleteEvent, *StatusUpdateEvent,
// *ContentStartEvent, *ContentDeltaEvent, *ContentStopEvent, *ErrorEvent and
// *UnknownEvent.
type Event interface {
	Type() EventType
	// EventID is the opaque ordering token issued by the server, or "".
	EventID() string
	isEvent()
}

// eventMeta is embedded in every event variant.
type eventMeta struct {
	ID string
}

func (m eventMeta) EventID() string { return m.ID }
func (eventMeta) isEvent()          {}

// InteractionStartEvent opens an interaction, usually with only id and status set.
type InteractionStartEvent struct {
	eventMeta
	Interaction *Interaction
}

// InteractionCompleteEvent carries the authoritative final interaction. After
// reassembly, Interaction.Outputs holds the sealed blocks when the server sent none.
type InteractionCompleteEvent struct {
	eventMeta
	Interaction *Interaction
}

// StatusUpdateEvent reports a status change of a running interaction.
type StatusUpdateEvent struct {
	eventMeta
	InteractionID string
	Status        Status
}

// ContentStartEvent opens the block at Index. Content, when present, seeds the block kind.
type ContentStartEvent struct {
	eventMeta
	Index   int
	Content Delta
}

// ContentDeltaEvent appends Delta to the block at Index.
type ContentDeltaEvent struct {
	eventMeta
	Index int
	Delta Delta
}

// ContentStopEvent seals the block at Index. After reassembly, Content holds
// the sealed block, or nil when the stop was a duplicate.
type ContentStopEvent struct {
	eventMeta
	Index   int
	Content *Content
}

// ErrorEvent is a server-reported error. It does not end the stream by itself.
type ErrorEvent struct {
	eventMeta
	Code    string
	Message string
}

// Error implements error so an ErrorEvent can be wrapped and inspected.
func (e *ErrorEvent) Error() string {
	switch {
	case e.Code != "" && e.Message != "":
		return fmt.Sprintf("interaction error %s: %s", e.Code, e.Message)
	case e.Code != "":
		return "interaction error " + e.Code
	default:
		return "interaction error: " + e.Message
	}
}

// UnknownEvent passes through a frame whose event type is not recognized.
type UnknownEvent struct {
	eventMeta
	EventType EventType
	Raw       []byte
}

func (*InteractionStartEvent) Type() EventType    { return EventInteractionStart }
func (*InteractionCompleteEvent) Type() EventType { return EventInteractionComplete }
func (*StatusUpdateEvent) Type() EventType        { return EventInteractionStatusUpdate }
func (*ContentStartEvent) Type() EventType        { return EventContentStart }
func (*ContentDeltaEvent) Type() EventType        { return EventContentDelta }
func (*ContentStopEvent) Type() EventType         { return EventContentStop }
func (*ErrorEvent) Type() EventType               { return EventError }
func (e *UnknownEvent) Type() EventType           { return e.EventType }

// withID returns m with the given id.
func withID(id string) eventMeta { return eventMeta{ID: id} }
