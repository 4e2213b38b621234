// Package gotrue talks to a GoTrue compatible auth server over its REST API and implements
// session.API and session.Authenticator.
package gotrue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/oauthmodel"
	"github.com/jrsteele09/go-auth-client/session"
)

var (
	_ session.API           = (*Client)(nil)
	_ session.Authenticator = (*Client)(nil)
)

const defaultTimeout = 10 * time.Second

type Client struct {
	baseURL    string
	apiKey     string
	headers    http.Header
	httpClient *http.Client
	nowFunc    func() time.Time
	logger     zerolog.Logger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) Option {
	return func(cl *Client) {
		cl.headers.Set(key, value)
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(cl *Client) {
		cl.nowFunc = now
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(cl *Client) {
		cl.logger = logger
	}
}

// New returns a Client for the auth server at baseURL, e.g. "https://project.example.com/auth/v1".
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		headers:    make(http.Header),
		httpClient: &http.Client{Timeout: defaultTimeout},
		nowFunc:    time.Now,
		logger:     log.With().Str("component", "gotrue").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// request describes one call to the auth server.
type request struct {
	method      string
	path        string
	query       url.Values
	accessToken string
	body        any
	grant       oauthmodel.GrantType
}

// do sends r and decodes a successful response into out, which may be nil.
func (c *Client) do(ctx context.Context, r request, out any) error {
	var body io.Reader
	if r.body != nil {
		b, err := json.Marshal(r.body)
		if err != nil {
			return errors.Wrapf(err, "encoding %s request", r.path)
		}
		body = bytes.NewReader(b)
	}

	endpoint := c.baseURL + r.path
	if len(r.query) > 0 {
		endpoint += "?" + r.query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, r.method, endpoint, body)
	if err != nil {
		return errors.Wrapf(err, "creating %s request", r.path)
	}

	for k, v := range c.headers {
		req.Header[k] = v
	}
	req.Header.Set("apikey", c.apiKey)
	bearer := r.accessToken
	if bearer == "" {
		bearer = c.apiKey
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Debug().Err(err).Str("path", r.path).Msg("auth request failed")
		return errors.Classify(session.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return c.errorFromResponse(resp, r)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decoding %s response", r.path)
	}
	return nil
}

func (c *Client) errorFromResponse(resp *http.Response, r request) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var er oauthmodel.ErrorResponse
	_ = json.Unmarshal(raw, &er)
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Code:       er.Error,
		Message:    er.Description(),
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	c.logger.Debug().Int("status", resp.StatusCode).Str("path", r.path).Str("code", apiErr.Code).Msg("auth server returned an error")

	switch {
	case resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests:
		return errors.Classify(session.ErrNetwork, apiErr)
	case er.IsInvalidGrant():
		return errors.Classify(session.ErrInvalidGrant, apiErr)
	case r.grant == oauthmodel.RefreshTokenGrant &&
		(resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized):
		return errors.Classify(session.ErrInvalidGrant, apiErr)
	}
	return apiErr
}

// APIError is a non-transient error answer from the auth server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gotrue: %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("gotrue: %d: %s", e.StatusCode, e.Message)
}
