// Package api is the gateway to the remote ledger REST API. Every request
// carries the stored bearer token; a 401 triggers at most one token refresh
// per request, shared across all requests in the process.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ledgerbook/internal/core"
	"ledgerbook/internal/credentials"
	"ledgerbook/internal/log"
)

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://cpe-workshop-ie.amiearth.com/api/v1"

// LoginPath is where an expired session is sent.
const LoginPath = "/login"

// Navigator moves the front-end to another screen. Location returns the
// current one.
type Navigator interface {
	Location() string
	Redirect(path string)
}

// Client implements ports.Gateway over HTTP.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	creds   *credentials.Manager
	nav     Navigator
	logger  *log.Logger
	timeout time.Duration
}

type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its transport is
// wrapped with the logging transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithNavigator(nav Navigator) Option {
	return func(c *Client) { c.nav = nav }
}

func WithLogger(logger *log.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithTimeout sets a per-request timeout; zero keeps the transport default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func New(baseURL string, creds *credentials.Manager, opts ...Option) (*Client, error) {
	if creds == nil {
		return nil, errors.New("api: credentials manager is required")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("api: parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("api: base url %q must be absolute", baseURL)
	}

	c := &Client{
		baseURL: u,
		http:    &http.Client{},
		creds:   creds,
		logger:  log.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithComponent(log.ComponentAPI)

	hc := *c.http
	hc.Transport = log.NewTransport(hc.Transport, c.logger)
	if c.timeout > 0 {
		hc.Timeout = c.timeout
	}
	c.http = &hc
	return c, nil
}

// Credentials exposes the manager the client reads tokens from.
func (c *Client) Credentials() *credentials.Manager {
	return c.creds
}

type request struct {
	method string
	path   string
	query  url.Values
	body   any

	// noAuth skips the bearer header and 401 handling.
	noAuth  bool
	retried bool
}

// envelope is the {message?, data} wrapper every endpoint responds with.
type envelope struct {
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data"`
}

// do sends r and decodes the envelope's data into out (when non-nil).
func (c *Client) do(ctx context.Context, r request, out any) error {
	body, err := c.send(ctx, r)
	if err != nil {
		return err
	}
	if out == nil || len(body) == 0 {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return requestError(fmt.Errorf("decode response: %w", err))
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return requestError(fmt.Errorf("decode response data: %w", err))
	}
	return nil
}

// send performs r, running the refresh protocol on 401, and returns the raw
// success body.
func (c *Client) send(ctx context.Context, r request) ([]byte, error) {
	status, body, err := c.roundTrip(ctx, r)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized && !r.noAuth {
		return c.unauthorized(ctx, r, body)
	}
	if status < 200 || status >= 300 {
		return nil, httpError(status, body)
	}
	return body, nil
}

func (c *Client) unauthorized(ctx context.Context, r request, body []byte) ([]byte, error) {
	if r.retried || !c.creds.TryBeginRefresh() {
		return nil, httpError(http.StatusUnauthorized, body)
	}
	r.retried = true

	err := c.refresh(ctx)
	c.creds.EndRefresh()
	if err != nil {
		attrs := []any{log.FieldOperation, log.OpRefresh, log.FieldError, err.Error()}
		var apiErr *Error
		if errors.As(err, &apiErr) {
			attrs = append(attrs, log.FieldErrorKind, apiErr.Kind.String())
		}
		c.logger.WarnContext(ctx, "token refresh failed", attrs...)
		return nil, c.expire(ctx)
	}
	c.logger.DebugContext(ctx, "token refreshed, retrying request", log.FieldOperation, log.OpRefresh, log.FieldURL, r.path)
	return c.send(ctx, r)
}

// refresh exchanges the stored refresh token for a new pair and persists it.
func (c *Client) refresh(ctx context.Context) error {
	refreshToken, err := c.creds.RefreshToken(ctx)
	if err != nil {
		return err
	}
	if refreshToken == "" {
		return errors.New("no refresh token")
	}

	body, err := c.send(ctx, request{
		method: http.MethodPost,
		path:   "/user/refresh",
		body:   map[string]string{"refresh_token": refreshToken},
		noAuth: true,
	})
	if err != nil {
		return err
	}

	tokens, err := decodeTokens(body)
	if err != nil {
		return err
	}
	return c.creds.Set(ctx, tokens)
}

// expire ends the session after an unrecoverable auth failure.
func (c *Client) expire(ctx context.Context) error {
	if err := c.creds.Clear(ctx); err != nil {
		c.logger.ErrorContext(ctx, "clear credentials", log.FieldError, err.Error())
	}
	if c.nav != nil && !strings.Contains(c.nav.Location(), LoginPath) {
		c.nav.Redirect(LoginPath)
	}
	return sessionExpired()
}

// decodeTokens accepts the pair either inside the data envelope or at the
// top level.
func decodeTokens(body []byte) (core.Tokens, error) {
	var wrapped struct {
		Data *core.Tokens `json:"data"`
		core.Tokens
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return core.Tokens{}, fmt.Errorf("decode tokens: %w", err)
	}
	t := wrapped.Tokens
	if wrapped.Data != nil && wrapped.Data.AccessToken != "" {
		t = *wrapped.Data
	}
	if t.AccessToken == "" {
		return core.Tokens{}, errors.New("response carries no access token")
	}
	return t, nil
}

func (c *Client) roundTrip(ctx context.Context, r request) (int, []byte, error) {
	req, err := c.newRequest(ctx, r)
	if err != nil {
		return 0, nil, requestError(err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, networkError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, networkError(err)
	}
	return resp.StatusCode, body, nil
}

func (c *Client) newRequest(ctx context.Context, r request) (*http.Request, error) {
	u := *c.baseURL
	u.Path = u.Path + r.path
	if len(r.query) > 0 {
		u.RawQuery = r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		b, err := json.Marshal(r.body)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if !r.noAuth {
		token, err := c.creds.AccessToken(ctx)
		if err != nil {
			return nil, err
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return req, nil
}
