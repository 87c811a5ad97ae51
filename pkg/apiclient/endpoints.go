package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-admin/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-admin/pkg/models"
	"github.com/ekaya-inc/ekaya-admin/pkg/session"
)

// API paths.
const (
	PathLogin    = "/api/auth/login"
	PathLogout   = "/api/auth/logout"
	PathProducts = "/api/products"
)

// ProductStatusPath returns the status endpoint for a product name.
// The name is escaped as a single path segment, so "a/b" stays one segment.
func ProductStatusPath(name string) string {
	return PathProducts + "/" + escapeSegment(name) + "/status"
}

// escapeSegment escapes a path segment, including dot segments that
// url.PathEscape leaves alone and servers would otherwise normalise away.
func escapeSegment(s string) string {
	switch s {
	case ".":
		return "%2E"
	case "..":
		return "%2E%2E"
	}
	return url.PathEscape(s)
}

// Envelope is the API's response wrapper: {status, data?, message?}.
type Envelope[T any] struct {
	Status  bool   `json:"status"`
	Data    T      `json:"data"`
	Message string `json:"message,omitempty"`
}

// StatusError reports an API-level rejection: a non-2xx status or status:false.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("products API returned status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("products API returned status %d", e.StatusCode)
}

// Unwrap maps the status onto the shared sentinels. A 404 stays ErrUpstream:
// the API has no per-product lookup, so it never means "no such product".
func (e *StatusError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return apperrors.ErrUnauthenticated
	case http.StatusConflict:
		return apperrors.ErrConflict
	default:
		return apperrors.ErrUpstream
	}
}

// TokenPair is the credential payload of a successful login.
type TokenPair struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// LoginResult is the outcome of a login call that reached the server.
type LoginResult struct {
	// Accepted is true for a 2xx response with status:true.
	Accepted bool
	// Tokens is nil when the server omitted data.
	Tokens *TokenPair
	// Message is the server-provided message, if any.
	Message    string
	StatusCode int
}

// Login submits credentials. A returned error means the server was not reached
// (see ErrUnreachable); any server response, including an undecodable one,
// yields a LoginResult.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	req := struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}{Email: email, Password: password}

	// Login never carries a bearer, whatever the browser still holds.
	resp, err := c.Do(ctx, session.Session{}, http.MethodPost, PathLogin, req)
	if err != nil {
		return nil, err
	}

	result := &LoginResult{StatusCode: resp.StatusCode}

	var env Envelope[*TokenPair]
	if err := resp.Decode(&env); err != nil {
		c.logger.Warn("Login response was not valid JSON", zap.Int("status", resp.StatusCode))
		return result, nil
	}

	result.Message = env.Message
	result.Accepted = resp.OK() && env.Status
	if result.Accepted {
		result.Tokens = env.Data
	}
	return result, nil
}

// Logout tells the API to end the session. Any HTTP response counts as done;
// only transport failures return an error.
func (c *Client) Logout(ctx context.Context, sess session.Session) error {
	resp, err := c.Do(ctx, sess, http.MethodPost, PathLogout, nil)
	if err != nil {
		return err
	}
	if !resp.OK() {
		c.logger.Info("Logout was not acknowledged by the API", zap.Int("status", resp.StatusCode))
	}
	return nil
}

// ListProducts fetches the full product collection.
func (c *Client) ListProducts(ctx context.Context, sess session.Session) ([]models.Product, error) {
	resp, err := c.Do(ctx, sess, http.MethodGet, PathProducts, nil)
	if err != nil {
		return nil, err
	}

	var env Envelope[[]models.Product]
	decodeErr := resp.Decode(&env)

	if !resp.OK() {
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: env.Message}
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	if !env.Status {
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: env.Message}
	}

	if env.Data == nil {
		return []models.Product{}, nil
	}
	return env.Data, nil
}

// UpdateProductStatus sets the status of the product with the given name.
// The endpoint is addressed by name, not uuid.
func (c *Client) UpdateProductStatus(ctx context.Context, sess session.Session, name string, status models.ProductStatus) error {
	body := struct {
		Status models.ProductStatus `json:"status"`
	}{Status: status}

	resp, err := c.Do(ctx, sess, http.MethodPut, ProductStatusPath(name), body)
	if err != nil {
		return err
	}

	// Acknowledgement bodies vary; only an explicit status:false is a rejection.
	var ack struct {
		Status  *bool  `json:"status"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(resp.Body, &ack)

	if !resp.OK() || (ack.Status != nil && !*ack.Status) {
		return &StatusError{StatusCode: resp.StatusCode, Message: ack.Message}
	}
	return nil
}
