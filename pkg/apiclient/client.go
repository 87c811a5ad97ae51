// Package apiclient provides a client for the remote products API.
//
// Every call takes the caller's session.Session explicitly. When the session
// carries an access token it is sent as "Authorization: Bearer <token>";
// otherwise the header is omitted. Calls are made exactly once: no retry,
// no token refresh on 401, no queueing.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-admin/pkg/logging"
	"github.com/ekaya-inc/ekaya-admin/pkg/metrics"
	"github.com/ekaya-inc/ekaya-admin/pkg/session"
)

// DefaultTimeout is the maximum time to wait for the API when none is configured.
const DefaultTimeout = 30 * time.Second

// ErrUnreachable wraps transport-level failures (DNS, refused connection,
// cancelled context). The API never produced a response.
var ErrUnreachable = errors.New("products API unreachable")

// Response is a raw API response. Non-2xx statuses are returned as a Response,
// not an error, so callers can surface the server's message.
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports whether the status code is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Decode unmarshals the body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// Client provides access to the products API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a client for the API rooted at baseURL (scheme and host, optional path prefix).
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.Named("apiclient"),
	}
}

// Do sends one request to path (already escaped, starting with "/").
// body, when non-nil, is JSON-encoded.
func (c *Client) Do(ctx context.Context, sess session.Session, method, path string, body any) (*Response, error) {
	endpoint := c.baseURL + path

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sess.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+sess.AccessToken)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveAPIRequest(method, 0, time.Since(start))
		c.logger.Warn("Products API request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.String("error", logging.SanitizeError(err)))
		return nil, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %w", ErrUnreachable, err)
	}

	metrics.ObserveAPIRequest(method, resp.StatusCode, time.Since(start))

	result := &Response{StatusCode: resp.StatusCode, Body: respBody}
	if !result.OK() {
		c.logger.Warn("Products API returned error",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", logging.SanitizeBody(respBody)))
	} else {
		c.logger.Debug("Products API request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.Duration("duration", time.Since(start)))
	}

	return result, nil
}
