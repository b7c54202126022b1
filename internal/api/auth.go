package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"ledgerbook/internal/core"
	"ledgerbook/internal/ports"
)

var _ ports.Gateway = (*Client)(nil)

// Login exchanges credentials for a token pair. It does not persist the
// tokens; that is the session's job.
func (c *Client) Login(ctx context.Context, email, password string) (ports.LoginResult, error) {
	body, err := c.send(ctx, request{
		method: http.MethodPost,
		path:   "/user/login",
		body:   map[string]string{"email": email, "password": password},
		noAuth: true,
	})
	if err != nil {
		return ports.LoginResult{}, err
	}

	var resp struct {
		Data struct {
			User *core.User `json:"user"`
		} `json:"data"`
		User *core.User `json:"user"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return ports.LoginResult{}, requestError(fmt.Errorf("decode login response: %w", err))
	}
	tokens, err := decodeTokens(body)
	if err != nil {
		return ports.LoginResult{}, requestError(err)
	}

	user := resp.Data.User
	if user == nil {
		user = resp.User
	}
	return ports.LoginResult{Tokens: tokens, User: user}, nil
}

func (c *Client) Register(ctx context.Context, r core.Registration) (core.User, error) {
	var u core.User
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/user/register",
		body:   r,
		noAuth: true,
	}, &u)
	return u, err
}

// Logout notifies the server. Callers clear local tokens regardless of the
// result.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, request{method: http.MethodGet, path: "/user/logout"}, nil)
}

func (c *Client) Profile(ctx context.Context) (core.User, error) {
	var u core.User
	err := c.do(ctx, request{method: http.MethodGet, path: "/user/profile"}, &u)
	return u, err
}

// Refresh runs the token refresh exchange on demand and persists the new
// pair.
func (c *Client) Refresh(ctx context.Context) error {
	if !c.creds.TryBeginRefresh() {
		return &Error{Kind: KindAuth, Message: MsgSessionExpired}
	}
	defer c.creds.EndRefresh()
	if err := c.refresh(ctx); err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) {
			return apiErr
		}
		return &Error{Kind: KindAuth, Status: http.StatusUnauthorized, Message: MsgSessionExpired, Err: err}
	}
	return nil
}
