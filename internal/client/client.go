// Package client speaks the clipboard exchange contract from the other
// side, for the send, fetch and ping commands.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.klb.dev/clipbridge/internal/api"
)

// StatusError is a non-200 reply from the server.
type StatusError struct {
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("server replied %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("server replied %d: %s", e.Code, e.Detail)
}

// Client calls one clipboard server.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// New returns a Client for baseURL ("http://host:port"). A bare
// "host:port" is accepted too.
func New(baseURL, token string) *Client {
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

type reply struct {
	Status    string `json:"status"`
	Clipboard string `json:"clipboard"`
	Detail    string `json:"detail"`
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (reply, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return reply{}, err
	}
	req.Header.Set(api.TokenHeader, c.Token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return reply{}, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var r reply
	if err := json.NewDecoder(io.LimitReader(resp.Body, api.MaxBodySize+1024)).Decode(&r); err != nil {
		if resp.StatusCode != http.StatusOK {
			return reply{}, &StatusError{Code: resp.StatusCode}
		}
		return reply{}, fmt.Errorf("%s %s: decoding reply: %w", method, path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return reply{}, &StatusError{Code: resp.StatusCode, Detail: r.Detail}
	}
	return r, nil
}

// Ping checks reachability and the token.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/ping", nil, "")
	return err
}

// Fetch returns the server host's clipboard text.
func (c *Client) Fetch(ctx context.Context) (string, error) {
	r, err := c.do(ctx, http.MethodGet, "/clipboard", nil, "")
	return r.Clipboard, err
}

// Send puts text on the server host's clipboard and returns the echo.
func (c *Client) Send(ctx context.Context, text string) (string, error) {
	form := url.Values{api.FormField: {text}}.Encode()
	r, err := c.do(ctx, http.MethodPost, "/clipboard", strings.NewReader(form), "application/x-www-form-urlencoded")
	return r.Clipboard, err
}
