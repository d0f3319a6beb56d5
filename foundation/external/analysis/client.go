// Package analysis is the client of the pitch analysis service.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/superfeelapi/pitchFeedback/foundation/audio"
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("analysis service returned %d", e.StatusCode)
	}
	return fmt.Sprintf("analysis service returned %d: %s", e.StatusCode, e.Body)
}

// ServiceError is returned when the service reports a failure in a 2xx body.
type ServiceError struct {
	Message string
}

func (e *ServiceError) Error() string {
	return "analysis service error: " + e.Message
}

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// New validates the base URL and constructs a client for BaseURL + Path.
// A zero Timeout leaves the transport default in place.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("analysis base url cannot be empty")
	}

	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("analysis base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("analysis base url: unsupported scheme %q", u.Scheme)
	}

	return &Client{
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + Path,
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}, nil
}

// Endpoint returns the full URL requests are posted to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Analyze posts the artifact once and decodes the feedback. There are no
// retries.
func (c *Client) Analyze(ctx context.Context, a *audio.Artifact) (FeedbackRecord, error) {
	req, err := NewRequest(ctx, c.endpoint, a)
	if err != nil {
		return FeedbackRecord{}, fmt.Errorf("build request: %w", err)
	}

	if c.apiKey != "" {
		req.Header.Add("api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return FeedbackRecord{}, err
	}
	defer resp.Body.Close()

	bytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return FeedbackRecord{}, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return FeedbackRecord{}, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(bytes))}
	}

	if msg, ok := serviceError(bytes); ok {
		return FeedbackRecord{}, &ServiceError{Message: msg}
	}

	return Decode(bytes), nil
}
