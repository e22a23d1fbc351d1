// Package fakerapi wraps the upstream synthetic person API. The client
// issues one GET per batch; retry policy belongs to the fetch layer.
package fakerapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"personpipe/internal/person"
)

const (
	defaultBaseURL     = "https://fakerapi.it/api/v2/persons"
	defaultHTTPTimeout = 20 * time.Second
	statusOK           = "OK"
)

// Config captures the runtime settings required to talk to the upstream API.
type Config struct {
	BaseURL        string
	TimeoutSeconds int
}

// Client fetches batches of raw person records.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// NewClient constructs an upstream client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg:        Config{BaseURL: strings.TrimSpace(cfg.BaseURL), TimeoutSeconds: cfg.TimeoutSeconds},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = defaultBaseURL
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return client
}

// HTTPStatusError reports a non-2xx upstream response.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("fakerapi request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// StatusMarkerError reports a 2xx response whose application-level status
// marker is not OK.
type StatusMarkerError struct {
	Marker string
}

func (e *StatusMarkerError) Error() string {
	return fmt.Sprintf("fakerapi request: status marker %q", e.Marker)
}

type batchResponse struct {
	Status string            `json:"status"`
	Code   int               `json:"code"`
	Total  int               `json:"total"`
	Data   []json.RawMessage `json:"data"`
}

// FetchBatch requests quantity records for the given gender using a
// deterministic seed, so repeated attempts for the same logical batch are
// reproducible upstream.
func (c *Client) FetchBatch(ctx context.Context, quantity int, gender string, seed int64) ([]person.RawPerson, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("fakerapi request: quantity must be positive, got %d", quantity)
	}

	endpoint, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("fakerapi request: parse base url: %w", err)
	}
	query := endpoint.Query()
	query.Set("_quantity", strconv.Itoa(quantity))
	query.Set("_seed", strconv.FormatInt(seed, 10))
	if gender != "" {
		query.Set("gender", gender)
	}
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("fakerapi request: new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fakerapi request: http error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fakerapi request: read body: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &HTTPStatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var payload batchResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("fakerapi request: decode response: %w", err)
	}
	if !strings.EqualFold(strings.TrimSpace(payload.Status), statusOK) {
		return nil, &StatusMarkerError{Marker: payload.Status}
	}

	records := make([]person.RawPerson, 0, len(payload.Data))
	for _, item := range payload.Data {
		raw, err := person.DecodeRaw(item)
		if err != nil {
			return nil, fmt.Errorf("fakerapi request: %w", err)
		}
		records = append(records, raw)
	}
	return records, nil
}

// Retryable classifies transport failures. Network errors, per-request
// timeouts, non-2xx statuses, and not-OK status markers are transient;
// cancellation and malformed payloads are not. A per-request timeout
// surfaces as context.DeadlineExceeded from the HTTP client, so deadline
// errors count as transient here; callers that impose their own deadline
// must check their context before retrying.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return true
	}
	var markerErr *StatusMarkerError
	if errors.As(err, &markerErr) {
		return true
	}

	var malformed *person.MalformedFieldError
	if errors.As(err, &malformed) {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	return false
}
