// Package client is the typed boundary to the System Control Agent. It performs
// exactly one HTTP exchange per call and never retries; retry policy belongs to
// the caller.
package client

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

	"github.com/rs/zerolog"

	"github.com/high001/webpanel/internal/models"
)

const defaultTimeout = 15 * time.Second

// Client talks to one agent over its REST API
type Client struct {
	base    string
	http    *http.Client
	session *Session
	logger  zerolog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithSession shares an existing session instead of creating one
func WithSession(s *Session) Option {
	return func(c *Client) {
		c.session = s
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a client for the agent at baseURL (scheme://host[:port])
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("invalid agent url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid agent url %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		base:   strings.TrimRight(u.String(), "/"),
		http:   &http.Client{Timeout: defaultTimeout},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.session == nil {
		c.session = NewSession()
	}
	return c, nil
}

// Session returns the session this client authenticates with
func (c *Client) Session() *Session {
	return c.session
}

// BaseURL returns the agent address
func (c *Client) BaseURL() string {
	return c.base
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, &Error{Kind: KindValidation, Op: method + " " + path, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if token := c.session.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// do sends req and returns the response when its status is 2xx. Any other
// status is converted to *Error and the body is closed. A 401 tears the
// session down.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	op := req.Method + " " + req.URL.Path
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug().Str("op", op).Err(err).Msg("request failed")
		return nil, &Error{Kind: KindNetwork, Op: op, Err: err}
	}
	c.logger.Debug().Str("op", op).Int("status", resp.StatusCode).Dur("took", time.Since(start)).Msg("request")

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	var body models.ErrorResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(raw, &body)

	apiErr := &Error{
		Kind:    kindForStatus(resp.StatusCode),
		Op:      op,
		Status:  resp.StatusCode,
		Message: strings.TrimSpace(body.Error),
	}
	if apiErr.Kind == KindAuth {
		c.session.Teardown(apiErr)
	}
	return nil, apiErr
}

func (c *Client) decode(resp *http.Response, out any) error {
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		op := resp.Request.Method + " " + resp.Request.URL.Path
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return &Error{Kind: KindNetwork, Op: op, Err: err}
		}
		return &Error{Kind: KindServer, Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	return c.decode(resp, out)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return &Error{Kind: KindValidation, Op: method + " " + path, Err: err}
		}
		body = bytes.NewReader(buf)
	}
	req, err := c.newRequest(ctx, method, path, nil, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	return c.decode(resp, out)
}

// sendMessage issues a mutating call whose success body is {message}
func (c *Client) sendMessage(ctx context.Context, method, path string, in any) (string, error) {
	var out models.MessageResponse
	if err := c.sendJSON(ctx, method, path, in, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}
