// Package mattermost is a minimal client for the Mattermost REST API v4.
package mattermost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	postsEndpoint = "/api/v4/posts"
	pingEndpoint  = "/api/v4/system/ping"

	// DefaultTimeout bounds a single API call.
	DefaultTimeout = 5 * time.Second

	// maxResponseBody caps how much of an error response is read.
	maxResponseBody = 64 * 1024
)

// PostError is returned when the API answers with anything but 201 Created.
type PostError struct {
	Status int
	// Message is taken from the response's "message" field when present.
	Message string
}

func (e *PostError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("mattermost: create post failed with status %d", e.Status)
	}
	return fmt.Sprintf("mattermost: create post failed with status %d: %s", e.Status, e.Message)
}

// TransportError wraps failures to reach the API or read its answer.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("mattermost: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Client posts messages on behalf of a bot or personal access token.
type Client struct {
	baseURL    string
	token      string
	timeout    time.Duration
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. The client is not
// modified; WithTimeout applies to a copy of it.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-call timeout. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}
	return c
}

// URL joins the base URL with an API endpoint.
func (c *Client) URL(endpoint string) string {
	return c.baseURL + endpoint
}

type createPostRequest struct {
	ChannelID string `json:"channel_id"`
	Message   string `json:"message"`
}

type apiError struct {
	Message string `json:"message"`
}

// CreatePost publishes message to the channel. It makes exactly one attempt.
func (c *Client) CreatePost(ctx context.Context, channelID, message string) error {
	payload, err := json.Marshal(createPostRequest{ChannelID: channelID, Message: message})
	if err != nil {
		return fmt.Errorf("mattermost: encode post: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, postsEndpoint, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return &TransportError{Op: "POST " + postsEndpoint + ": read response", Err: err}
	}

	if resp.StatusCode == http.StatusCreated {
		return nil
	}
	return &PostError{Status: resp.StatusCode, Message: errorMessage(body)}
}

// Ping checks that the server is reachable and healthy.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, pingEndpoint, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if resp.StatusCode != http.StatusOK {
		msg := errorMessage(body)
		if msg == "" {
			return fmt.Errorf("mattermost: ping returned status %d", resp.StatusCode)
		}
		return fmt.Errorf("mattermost: ping returned status %d: %s", resp.StatusCode, msg)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload []byte) (*http.Response, error) {
	op := method + " " + endpoint

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.URL(endpoint), body)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := RequestIDFromContext(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	return resp, nil
}

// errorMessage pulls "message" out of an API error body, best effort.
func errorMessage(body []byte) string {
	var e apiError
	if err := json.Unmarshal(body, &e); err != nil {
		return ""
	}
	return e.Message
}

type requestIDKey struct{}

// WithRequestID attaches an id that is forwarded as X-Request-ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the id set by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
