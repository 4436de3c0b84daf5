// ABOUTME: HTTP client for the Interactions API with handshake retry and SSE event streams
// ABOUTME: Exponential backoff on 429/5xx before the stream starts; never retries mid-stream

package httputil

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/mauromedda/genai-go/pkg/interactions/internal/sse"
)

const (
	maxRetries    = 3
	baseBackoffMs = 500
	maxBackoffMs  = 10000

	maxErrorBody = 64 * 1024
)

// Client wraps an http.Client with retry logic and default headers.
type Client struct {
	httpClient *http.Client
	baseURL    string
	headers    map[string]string
}

// NewClient creates a client for baseURL. A nil httpClient uses DefaultHTTPClient.
func NewClient(baseURL string, headers map[string]string, httpClient *http.Client) *Client {
	if headers == nil {
		headers = make(map[string]string)
	}
	if httpClient == nil {
		httpClient = DefaultHTTPClient()
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    NormalizeBaseURL(baseURL),
		headers:    headers,
	}
}

// DefaultHTTPClient returns a client suited to long-lived event streams: no
// overall timeout, bounded dial/TLS/header waits. Proxy support comes from
// the environment (HTTP_PROXY, HTTPS_PROXY).
func DefaultHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
		},
	}
}

// Do sends a request, retrying on 429 and 5xx status codes. It returns the
// response of the last attempt, even if retries were exhausted.
func (c *Client) Do(ctx context.Context, method, path string, body []byte, header http.Header) (*http.Response, error) {
	var lastResp *http.Response

	for attempt := range maxRetries {
		req, err := c.buildRequest(ctx, method, path, body, header)
		if err != nil {
			return nil, err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("http request failed: %w", err)
		}

		if !isRetryable(resp.StatusCode) {
			return resp, nil
		}

		resp.Body.Close()
		lastResp = resp

		if attempt < maxRetries-1 {
			if err := sleepWithContext(ctx, backoff(attempt)); err != nil {
				return nil, fmt.Errorf("context cancelled during retry backoff: %w", err)
			}
		}
	}

	// Retries exhausted: make one final request to return a readable response.
	req, err := c.buildRequest(ctx, method, path, body, header)
	if err != nil {
		return lastResp, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed after retries: %w", err)
	}
	return resp, nil
}

// StatusError is a non-2xx response to a stream request.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// EventStream is an open SSE response.
type EventStream struct {
	reader *sse.Reader
	resp   *http.Response
	cancel context.CancelFunc
	once   sync.Once
}

// StreamSSE sends a request and returns the response body as an SSE stream.
// A non-2xx response is returned as *StatusError.
func (c *Client) StreamSSE(ctx context.Context, method, path string, body []byte, header http.Header) (*EventStream, error) {
	ctx, cancel := context.WithCancel(ctx)

	if header == nil {
		header = make(http.Header)
	}
	header.Set("Accept", "text/event-stream")
	header.Set("Cache-Control", "no-cache")

	resp, err := c.Do(ctx, method, path, body, header)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("SSE stream request failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		cancel()
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(msg))}
	}

	return &EventStream{reader: sse.NewReader(resp.Body), resp: resp, cancel: cancel}, nil
}

// Next returns the next frame, io.EOF at the end of the body.
func (s *EventStream) Next() (sse.Frame, error) {
	return s.reader.Next()
}

// Close aborts the request and releases the connection. It unblocks a
// concurrent Next and is safe to call more than once.
func (s *EventStream) Close() error {
	var err error
	s.once.Do(func() {
		s.cancel()
		err = s.resp.Body.Close()
	})
	return err
}

// buildRequest creates an http.Request with default headers applied.
func (c *Client) buildRequest(ctx context.Context, method, path string, body []byte, header http.Header) (*http.Request, error) {
	url := c.baseURL + path

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s %s: %w", method, path, err)
	}

	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, vs := range header {
		req.Header[k] = append([]string(nil), vs...)
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

// isRetryable returns true for status codes that warrant a retry.
func isRetryable(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || statusCode >= 500
}

// backoff returns the backoff duration for the given attempt using exponential backoff.
func backoff(attempt int) time.Duration {
	ms := float64(baseBackoffMs) * math.Pow(2, float64(attempt))
	if ms > maxBackoffMs {
		ms = maxBackoffMs
	}
	return time.Duration(ms) * time.Millisecond
}

// sleepWithContext waits for the given duration or until the context is cancelled.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
