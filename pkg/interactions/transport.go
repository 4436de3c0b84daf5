// ABOUTME: Transport abstraction for opening interaction streams, plus the default SSE-over-HTTP transport
// ABOUTME: Adapts the internal SSE event stream to FrameSource and maps handshake failures to APIError

package interactions

import (
	"context"
	"errors"
	"net/http"

	"github.com/mauromedda/genai-go/pkg/interactions/internal/httputil"
)

// StreamRequest describes one stream open.
type StreamRequest struct {
	// InteractionID selects an existing interaction. Empty means create.
	InteractionID string
	// LastEventID asks the server to replay only events after it.
	LastEventID string
	// Body is the JSON create payload, nil for an existing interaction.
	Body []byte
	// RequestID correlates the request in logs and traces.
	RequestID string
}

// Transport opens frame sources. Implementations must honor ctx for the
// lifetime of the returned source.
type Transport interface {
	Open(ctx context.Context, req *StreamRequest) (FrameSource, error)
}

type httpTransport struct {
	client  *httputil.Client
	version string
}

func newHTTPTransport(o *options) *httpTransport {
	headers := make(map[string]string, len(o.headers)+1)
	for k, v := range o.headers {
		headers[k] = v
	}
	if o.apiKey != "" {
		headers["x-goog-api-key"] = o.apiKey
	}
	return &httpTransport{
		client:  httputil.NewClient(o.baseURL, headers, o.httpClient),
		version: o.apiVersion,
	}
}

func (t *httpTransport) Open(ctx context.Context, req *StreamRequest) (FrameSource, error) {
	header := make(http.Header)
	if req.RequestID != "" {
		header.Set("X-Request-Id", req.RequestID)
	}

	method, path := http.MethodPost, httputil.CreatePath(t.version)
	if req.InteractionID != "" {
		method, path = http.MethodGet, httputil.GetStreamPath(t.version, req.InteractionID, req.LastEventID)
		if req.LastEventID != "" {
			header.Set("Last-Event-ID", req.LastEventID)
		}
	}

	es, err := t.client.StreamSSE(ctx, method, path, req.Body, header)
	if err != nil {
		var se *httputil.StatusError
		if errors.As(err, &se) {
			return nil, &APIError{StatusCode: se.StatusCode, Body: se.Body}
		}
		return nil, &TransportError{Err: err}
	}
	return &sseSource{es: es}, nil
}

// sseSource adapts an SSE event stream to FrameSource.
type sseSource struct {
	es *httputil.EventStream
}

func (s *sseSource) Next() (Frame, error) {
	fr, err := s.es.Next()
	if err != nil {
		return Frame{}, err
	}
	return Frame{Event: fr.Event, Data: fr.Data, ID: fr.ID}, nil
}

func (s *sseSource) Close() error { return s.es.Close() }
