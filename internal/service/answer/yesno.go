package answer

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
	// DefaultYesNoURL is the public endpoint serving random yes/no answers.
	DefaultYesNoURL = "https://yesno.wtf/api"

	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 1 << 20
)

// HTTPStatusError captures non-2xx upstream responses.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("yesno: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

// HTTPStatusCode exposes the upstream status.
func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// YesNoClient fetches random answers from yesno.wtf. It performs a single GET
// per call with no retries.
type YesNoClient struct {
	url        string
	httpClient *http.Client
}

// YesNoOption customises a YesNoClient.
type YesNoOption func(*YesNoClient)

// WithURL points the client at another endpoint.
func WithURL(url string) YesNoOption {
	return func(c *YesNoClient) {
		if url = strings.TrimSpace(url); url != "" {
			c.url = url
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) YesNoOption {
	return func(c *YesNoClient) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithTimeout sets the overall request timeout on a copy of the current
// client, so a client given to WithHTTPClient keeps its transport. Zero
// disables it.
func WithTimeout(timeout time.Duration) YesNoOption {
	return func(c *YesNoClient) {
		copied := *c.httpClient
		copied.Timeout = timeout
		c.httpClient = &copied
	}
}

// NewYesNoClient builds a client for DefaultYesNoURL unless overridden.
func NewYesNoClient(opts ...YesNoOption) *YesNoClient {
	c := &YesNoClient{
		url:        DefaultYesNoURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch requests a random answer. The question is not sent upstream.
func (c *YesNoClient) Fetch(ctx context.Context, _ string) (*Answer, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("yesno: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yesno: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("yesno: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPStatusError{
			StatusCode: resp.StatusCode,
			URL:        c.url,
			Body:       strings.TrimSpace(string(raw)),
		}
	}

	return decodeAnswer(raw)
}

// decodeAnswer treats an empty body or JSON null as "no answer".
func decodeAnswer(raw []byte) (*Answer, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var payload Answer
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("yesno: decode response: %w", err)
	}
	return &payload, nil
}
