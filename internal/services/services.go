// package services implements the HTTP clients for the musicai backend and the Spotify Web API
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/desertthunder/musicai/internal/models"
	"github.com/desertthunder/musicai/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// Top item types and ranking windows of the provider top endpoint.
const (
	TopArtists = "artists"
	TopTracks  = "tracks"

	LongTerm   = "long_term"
	MediumTerm = "medium_term"
	ShortTerm  = "short_term"
)

// TopItemsFetcher fetches a page of the user's top artists or tracks.
type TopItemsFetcher interface {
	UserTop(ctx context.Context, token, itemType, timeRange string) (*models.TopItems, error)
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Method     string
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// Unwrap maps 401 to [shared.ErrNotAuthenticated] and everything else to [shared.ErrAPIRequest].
func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return shared.ErrNotAuthenticated
	}
	return shared.ErrAPIRequest
}

// StatusCode extracts the HTTP status from a [StatusError] or an [oauth2.RetrieveError].
//
// Returns 0 when err carries no response.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}

	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		return re.Response.StatusCode
	}
	return 0
}

// IsUnauthorized reports whether err carries a 401 status.
func IsUnauthorized(err error) bool {
	return StatusCode(err) == http.StatusUnauthorized
}

// doRequest sends req with an optional bearer token and decodes a 2xx JSON body into result.
func doRequest(client *http.Client, req *http.Request, token string, result any) error {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{
			StatusCode: resp.StatusCode,
			Method:     req.Method,
			URL:        req.URL.Path,
			Body:       string(bytes.TrimSpace(body)),
		}
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// newJSONRequest builds a request with body encoded as JSON when non-nil.
func newJSONRequest(ctx context.Context, method, url string, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, r)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// RateLimitedTransport delays each request until the limiter admits it.
type RateLimitedTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

// NewRateLimitedTransport wraps base with a token bucket of rps requests per second.
//
// A non-positive rps disables limiting. base defaults to [http.DefaultTransport].
func NewRateLimitedTransport(base http.RoundTripper, rps float64, burst int) *RateLimitedTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	if burst <= 0 {
		burst = 1
	}

	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &RateLimitedTransport{base: base, limiter: rate.NewLimiter(limit, burst)}
}

func (t *RateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", shared.ErrTimeout, err)
	}
	return t.base.RoundTrip(req)
}
