// Package authapi is the client for the CreatorOS auth service - the backend
// that owns the canonical user record behind the identity provider.
package authapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// User is the canonical user record returned by the auth service.
type User struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Roles    []string `json:"roles"`
}

// HTTPError is a non-2xx response from the auth service.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body != "" {
		return e.Body
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// Unauthorized reports whether the service rejected the bearer token.
func (e *HTTPError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// Client is the narrow interface the session layer consumes.
type Client interface {
	// Me returns the current user record. A 401 is the signal that a locally
	// restored access token is no longer valid.
	Me(ctx context.Context, accessToken string) (*User, error)

	// SyncUser idempotently creates/returns the canonical user record for the
	// bearer's identity. Called once after every successful login.
	SyncUser(ctx context.Context, accessToken string) (*User, error)

	// Logout invalidates the refresh token server-side. Best-effort.
	Logout(ctx context.Context, accessToken string) error
}

// HTTPClient implements Client over the auth service's REST endpoints.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

var _ Client = (*HTTPClient)(nil)

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) {
		c.httpClient = hc
	}
}

// WithLogger attaches a logger; the default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *HTTPClient) {
		c.logger = logger
	}
}

// New returns a client for the auth service at baseURL.
func New(baseURL string, options ...Option) (*HTTPClient, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("[authapi.New] base URL is required")
	}
	c := &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     zerolog.Nop(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

func (c *HTTPClient) Me(ctx context.Context, accessToken string) (*User, error) {
	user := &User{}
	if err := c.call(ctx, http.MethodGet, "/auth/me", accessToken, user); err != nil {
		return nil, errors.Wrap(err, "[authapi.Me]")
	}
	return user, nil
}

func (c *HTTPClient) SyncUser(ctx context.Context, accessToken string) (*User, error) {
	user := &User{}
	if err := c.call(ctx, http.MethodPost, "/auth/users/sync", accessToken, user); err != nil {
		return nil, errors.Wrap(err, "[authapi.SyncUser]")
	}
	return user, nil
}

func (c *HTTPClient) Logout(ctx context.Context, accessToken string) error {
	if err := c.call(ctx, http.MethodPost, "/auth/logout", accessToken, nil); err != nil {
		return errors.Wrap(err, "[authapi.Logout]")
	}
	return nil
}

func (c *HTTPClient) call(ctx context.Context, method, path, accessToken string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Debug().Int("status", resp.StatusCode).Str("path", path).Msg("auth service call failed")
		return &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrapf(err, "decode %s response", path)
	}
	return nil
}
