// ABOUTME: Error taxonomy for interaction streams: decode, transport, incomplete, closed, timeout
// ABOUTME: Sentinels are matched with errors.Is; typed errors with errors.As

package interactions

import (
	"errors"
	"fmt"
)

var (
	// ErrStreamClosed is returned by Recv after Close.
	ErrStreamClosed = errors.New("interactions: stream closed")
	// ErrIncomplete reports that the transport ended before a terminal
	// interaction.complete event was observed.
	ErrIncomplete = errors.New("interactions: stream ended before interaction completed")
	// ErrIdleTimeout reports that no frame arrived within the configured idle timeout.
	ErrIdleTimeout = errors.New("interactions: stream idle timeout")

	errEmptyBody = errors.New("empty body")
)

// DecodeError reports a recognized event whose body could not be decoded.
// EventID is preserved so a caller can resume past the bad frame.
type DecodeError struct {
	EventType EventType
	EventID   string
	Err       error
}

func (e *DecodeError) Error() string {
	if e.EventType == "" {
		return fmt.Sprintf("interactions: decoding frame: %v", e.Err)
	}
	return fmt.Sprintf("interactions: decoding %s frame: %v", e.EventType, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// TransportError wraps an I/O failure of the underlying frame source.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("interactions: transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IncompleteError is returned when the stream ends without a terminal event.
// LastError holds the last server-reported error event, if any.
type IncompleteError struct {
	LastError *ErrorEvent
}

func (e *IncompleteError) Error() string {
	if e.LastError != nil {
		return fmt.Sprintf("%v (last server error: %v)", ErrIncomplete, e.LastError)
	}
	return ErrIncomplete.Error()
}

// Is makes errors.Is(err, ErrIncomplete) match.
func (e *IncompleteError) Is(target error) bool { return target == ErrIncomplete }

// Unwrap exposes the last server error to errors.As.
func (e *IncompleteError) Unwrap() error {
	if e.LastError == nil {
		return nil
	}
	return e.LastError
}

// APIError is a non-2xx response to a stream open request.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("interactions: API error (status %d): %s", e.StatusCode, e.Body)
}
