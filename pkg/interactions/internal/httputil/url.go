// ABOUTME: URL helpers for the Interactions API: base URL normalization and endpoint paths
// ABOUTME: Strips a trailing API version so the client can append its own versioned path

package httputil

import (
	"net/url"
	"strings"
)

// NormalizeBaseURL trims trailing slashes and a trailing bare API version
// segment ("/v1", "/v1beta", "/v1alpha") from a base URL, so that
// "https://host/v1beta" and "https://host" address the same endpoints.
// Nested paths such as "https://host/proxy/v1beta" are kept.
func NormalizeBaseURL(baseURL string) string {
	if baseURL == "" {
		return ""
	}
	baseURL = strings.TrimRight(baseURL, "/")

	u, err := url.Parse(baseURL)
	if err != nil {
		return baseURL
	}

	switch u.Path {
	case "/v1", "/v1beta", "/v1alpha":
		u.Path = ""
		return strings.TrimRight(u.String(), "/")
	}
	return baseURL
}

// CreatePath is the path that creates an interaction and streams it.
func CreatePath(version string) string {
	return "/" + version + "/interactions?alt=sse"
}

// GetStreamPath is the path that streams an existing interaction, replaying
// events after lastEventID when it is set.
func GetStreamPath(version, id, lastEventID string) string {
	q := url.Values{}
	q.Set("stream", "true")
	if lastEventID != "" {
		q.Set("last_event_id", lastEventID)
	}
	return "/" + version + "/interactions/" + url.PathEscape(id) + "?" + q.Encode()
}
