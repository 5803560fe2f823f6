package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nhle/mailpdf/internal/source"
)

// maxErrorBody caps how much of an error response is kept in a
// TransportError.
const maxErrorBody = 512

// Client is a thin HTTP client for the Microsoft Graph REST API. It
// handles Bearer token authentication, JSON marshaling, and automatic
// retry with exponential backoff on HTTP 429 and 503.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewClient creates a new Graph HTTP client rooted at baseURL
// (e.g. https://graph.microsoft.com/v1.0).
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxRetries: 3,
		sleep:      sleepContext,
	}
}

// Get performs an HTTP GET request and unmarshals the JSON response.
func (c *Client) Get(
	ctx context.Context,
	token string,
	path string,
	query url.Values,
	result interface{},
) error {
	return c.do(ctx, token, http.MethodGet, path, query, nil, result)
}

// Patch performs an HTTP PATCH request with a JSON body and unmarshals
// the JSON response, if any.
func (c *Client) Patch(
	ctx context.Context,
	token string,
	path string,
	body interface{},
	result interface{},
) error {
	return c.do(ctx, token, http.MethodPatch, path, nil, body, result)
}

// do is the core HTTP method that builds the request, handles auth,
// throttling with exponential backoff, and JSON (de)serialization. Every
// failure is returned as a *source.TransportError.
func (c *Client) do(
	ctx context.Context,
	token string,
	method string,
	path string,
	query url.Values,
	body interface{},
	result interface{},
) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + encodeQuery(query)
	}

	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		payload = data
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}

		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return &source.TransportError{Method: method, Path: path, Err: err}
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return &source.TransportError{
				Method: method, Path: path, StatusCode: resp.StatusCode,
				Err: fmt.Errorf("reading response body: %w", readErr),
			}
		}

		if resp.StatusCode == http.StatusTooManyRequests ||
			resp.StatusCode == http.StatusServiceUnavailable {
			lastErr = newStatusError(method, path, resp.StatusCode, respBody)
			if attempt == c.maxRetries {
				break
			}
			if err := c.sleep(ctx, retryAfterDuration(resp, attempt)); err != nil {
				return &source.TransportError{Method: method, Path: path, Err: err}
			}
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return newStatusError(method, path, resp.StatusCode, respBody)
		}

		// No content to parse (e.g. 204).
		if result == nil || resp.StatusCode == http.StatusNoContent || len(respBody) == 0 {
			return nil
		}

		if err := json.Unmarshal(respBody, result); err != nil {
			return &source.TransportError{
				Method: method, Path: path, StatusCode: resp.StatusCode,
				Err: fmt.Errorf("unmarshaling response: %w", err),
			}
		}

		return nil
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

// newStatusError builds a TransportError, preferring the Graph error
// message over the raw body.
func newStatusError(method, path string, status int, body []byte) *source.TransportError {
	msg := strings.TrimSpace(string(body))

	var graphErr ErrorResponse
	if json.Unmarshal(body, &graphErr) == nil && graphErr.Error.Code != "" {
		msg = graphErr.Error.Code + ": " + graphErr.Error.Message
	}
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody]
	}

	return &source.TransportError{
		Method:     method,
		Path:       path,
		StatusCode: status,
		Body:       msg,
	}
}

// encodeQuery encodes query parameters with %20 for spaces; Graph rejects
// '+' inside $filter expressions.
func encodeQuery(query url.Values) string {
	return strings.ReplaceAll(query.Encode(), "+", "%20")
}

// retryAfterDuration reads the Retry-After header and computes a wait
// duration. Falls back to exponential backoff if the header is missing.
func retryAfterDuration(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}

	// Exponential backoff: 1s, 2s, 4s, ...
	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
