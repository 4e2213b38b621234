// Package client wires a session.Manager to a GoTrue auth server and hands out request
// headers and an http.Client that always carry the current access token.
package client

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-auth-client/gotrue"
	"github.com/jrsteele09/go-auth-client/session"
	"github.com/jrsteele09/go-auth-client/storage"
	"github.com/jrsteele09/go-auth-client/storage/memory"
)

const (
	authPath         = "/auth/v1"
	defaultUserAgent = "go-auth-client"
)

// Config identifies the project. URL and APIKey are required.
type Config struct {
	URL     string            // Project URL, e.g. "https://project.example.com"
	APIKey  string            // Public (anon) API key
	Headers map[string]string // Extra headers sent with every request
}

type Client struct {
	cfg         Config
	auth        *session.Manager
	api         session.API
	store       storage.Store
	sessionOpts []session.Option
	httpClient  *http.Client
	logger      zerolog.Logger
}

type Option func(*Client)

// WithStore sets where the session is persisted. Defaults to an in-memory store.
func WithStore(store storage.Store) Option {
	return func(c *Client) {
		c.store = store
	}
}

// WithSessionOptions passes options through to the session manager.
func WithSessionOptions(opts ...session.Option) Option {
	return func(c *Client) {
		c.sessionOpts = append(c.sessionOpts, opts...)
	}
}

// WithAPI replaces the GoTrue adapter, e.g. with an oauthapi.Client.
func WithAPI(api session.API) Option {
	return func(c *Client) {
		c.api = api
	}
}

// WithHTTPClient sets the client used for auth calls and as the base of HTTPClient.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New validates cfg and starts a session manager for it.
func New(cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("%w: URL is required", session.ErrConfiguration)
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: API key is required", session.ErrConfiguration)
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")

	c := &Client{
		cfg:        cfg,
		httpClient: http.DefaultClient,
		logger:     log.With().Str("component", "client").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.store == nil {
		c.store = memory.New()
	}
	if c.api == nil {
		gtOpts := []gotrue.Option{
			gotrue.WithHTTPClient(c.httpClient),
			gotrue.WithLogger(c.logger),
			gotrue.WithHeader("X-Client-Info", defaultUserAgent),
		}
		for k, v := range cfg.Headers {
			gtOpts = append(gtOpts, gotrue.WithHeader(k, v))
		}
		c.api = gotrue.New(c.AuthURL(), cfg.APIKey, gtOpts...)
	}

	sessionOpts := append([]session.Option{session.WithLogger(c.logger)}, c.sessionOpts...)
	auth, err := session.NewManager(c.api, c.store, sessionOpts...)
	if err != nil {
		return nil, err
	}
	c.auth = auth
	return c, nil
}

// AuthURL is the base URL of the auth server.
func (c *Client) AuthURL() string {
	return c.cfg.URL + authPath
}

// Auth returns the session manager.
func (c *Client) Auth() *session.Manager {
	return c.auth
}

// Headers returns the headers an authenticated request needs: the API key, and a bearer
// token that is the session's access token or the API key when signed out.
func (c *Client) Headers() http.Header {
	h := make(http.Header)
	h.Set("X-Client-Info", defaultUserAgent)
	for k, v := range c.cfg.Headers {
		h.Set(k, v)
	}
	h.Set("apikey", c.cfg.APIKey)

	bearer := c.auth.AccessToken()
	if bearer == "" {
		bearer = c.cfg.APIKey
	}
	h.Set("Authorization", "Bearer "+bearer)
	return h
}

// HTTPClient returns a client whose requests get Headers applied when they are sent.
// Headers already set on a request are kept.
func (c *Client) HTTPClient() *http.Client {
	base := c.httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	return &http.Client{
		Transport:     &authTransport{base: base, headers: c.Headers},
		CheckRedirect: c.httpClient.CheckRedirect,
		Jar:           c.httpClient.Jar,
		Timeout:       c.httpClient.Timeout,
	}
}

// Close stops the session manager.
func (c *Client) Close() error {
	return c.auth.Close()
}

type authTransport struct {
	base    http.RoundTripper
	headers func() http.Header
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers() {
		if req.Header.Get(k) == "" {
			req.Header[k] = v
		}
	}
	return t.base.RoundTrip(req)
}
