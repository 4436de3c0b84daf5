// ABOUTME: Functional options for the Interactions client
// ABOUTME: All configuration is explicit; the client never reads the process environment

package interactions

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the public Gemini API endpoint.
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	// DefaultAPIVersion is the API version path segment.
	DefaultAPIVersion = "v1beta"
)

type options struct {
	apiKey      string
	baseURL     string
	apiVersion  string
	httpClient  *http.Client
	transport   Transport
	idleTimeout time.Duration
	bufferSize  int
	tracer      trace.Tracer
	limit       rate.Limit
	burst       int
	headers     map[string]string
}

// Option configures a Client.
type Option func(*options)

// WithAPIKey sets the key sent as x-goog-api-key.
func WithAPIKey(key string) Option {
	return func(o *options) { o.apiKey = key }
}

// WithBaseURL overrides DefaultBaseURL.
func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = u }
}

// WithAPIVersion overrides DefaultAPIVersion.
func WithAPIVersion(v string) Option {
	return func(o *options) { o.apiVersion = v }
}

// WithHTTPClient sets the http.Client used by the default transport.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithTransport replaces the HTTP transport entirely.
func WithTransport(t Transport) Option {
	return func(o *options) { o.transport = t }
}

// WithIdleTimeout ends streams that receive nothing for d.
func WithIdleTimeout(d time.Duration) Option {
	return func(o *options) { o.idleTimeout = d }
}

// WithBufferSize bounds how many frames a stream reads ahead of its consumer.
func WithBufferSize(n int) Option {
	return func(o *options) { o.bufferSize = n }
}

// WithTracer sets the tracer for stream spans. The global provider is used by default.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithRateLimit limits how often streams are opened, including resumes.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(o *options) {
		o.limit = limit
		o.burst = burst
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(o *options) {
		if o.headers == nil {
			o.headers = make(map[string]string)
		}
		o.headers[key] = value
	}
}
