// Package oauthapi adapts a standard OAuth 2.0 / OpenID Connect provider to session.API.
//
// Tokens are exchanged with golang.org/x/oauth2. When an issuer is configured the provider is
// discovered with go-oidc and user records come from its userinfo endpoint; otherwise they are
// read from the access token's claims.
package oauthapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	ierrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/oauthmodel"
	"github.com/jrsteele09/go-auth-client/session"
	"github.com/jrsteele09/go-auth-client/token"
)

var (
	_ session.API           = (*Client)(nil)
	_ session.Authenticator = (*Client)(nil)
)

// ErrMissingEndpoint is returned by New when neither an issuer nor a token URL is configured.
var ErrMissingEndpoint = errors.New("oauthapi: an issuer or a token URL is required")

type Config struct {
	ClientID      string
	ClientSecret  string
	Issuer        string // OIDC issuer, e.g. "https://tenant-a.example.com". Enables discovery
	TokenURL      string // Used when Issuer is empty
	RevocationURL string // RFC 7009 endpoint. Discovered from the issuer when empty
	Scopes        []string
	AuthStyle     oauth2.AuthStyle
}

type Client struct {
	oauth         *oauth2.Config
	provider      *oidc.Provider
	revocationURL string
	httpClient    *http.Client
	nowFunc       func() time.Time
	logger        zerolog.Logger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
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

// New builds a Client. With cfg.Issuer set the provider's discovery document is fetched.
func New(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	c := &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		nowFunc:    time.Now,
		logger:     log.With().Str("component", "oauthapi").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}

	scopes := cfg.Scopes
	var endpoint oauth2.Endpoint
	switch {
	case cfg.Issuer != "":
		provider, err := oidc.NewProvider(oidc.ClientContext(ctx, c.httpClient), cfg.Issuer)
		if err != nil {
			return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
		}
		c.provider = provider
		endpoint = provider.Endpoint()

		var discovered struct {
			RevocationEndpoint string `json:"revocation_endpoint"`
		}
		if err := provider.Claims(&discovered); err == nil {
			c.revocationURL = discovered.RevocationEndpoint
		}
		if len(scopes) == 0 {
			scopes = []string{oidc.ScopeOpenID, "profile", "email", oidc.ScopeOfflineAccess}
		}
	case cfg.TokenURL != "":
		endpoint = oauth2.Endpoint{TokenURL: cfg.TokenURL}
	default:
		return nil, ErrMissingEndpoint
	}

	if cfg.RevocationURL != "" {
		c.revocationURL = cfg.RevocationURL
	}
	if cfg.AuthStyle != oauth2.AuthStyleAutoDetect {
		endpoint.AuthStyle = cfg.AuthStyle
	}
	c.oauth = &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     endpoint,
		Scopes:       scopes,
	}
	return c, nil
}

func (c *Client) context(ctx context.Context) context.Context {
	return oidc.ClientContext(ctx, c.httpClient)
}

// RefreshAccessToken runs the refresh_token grant.
func (c *Client) RefreshAccessToken(ctx context.Context, refreshToken string) (*session.Session, error) {
	ctx = c.context(ctx)
	tok, err := c.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, c.classify(ctx, err)
	}
	return c.toSession(ctx, tok), nil
}

// SignInWithPassword runs the resource owner password credentials grant. The phone number
// is used as the username when no email is given.
func (c *Client) SignInWithPassword(ctx context.Context, creds session.Credentials) (*session.Session, error) {
	username := creds.Email
	if username == "" {
		username = creds.Phone
	}
	ctx = c.context(ctx)
	tok, err := c.oauth.PasswordCredentialsToken(ctx, username, creds.Password)
	if err != nil {
		return nil, c.classify(ctx, err)
	}
	return c.toSession(ctx, tok), nil
}

func (c *Client) SignUp(context.Context, session.Credentials, session.SignUpOptions) (*session.Session, *session.User, error) {
	return nil, nil, session.ErrUnsupported
}

func (c *Client) VerifyOTP(context.Context, session.VerifyOTPParams) (*session.Session, error) {
	return nil, session.ErrUnsupported
}

func (c *Client) UpdateUser(context.Context, string, session.UserAttributes) (*session.User, error) {
	return nil, session.ErrUnsupported
}

func (c *Client) SendMagicLink(context.Context, string, session.OTPOptions) error {
	return session.ErrUnsupported
}

func (c *Client) SendMobileOTP(context.Context, string, session.OTPOptions) error {
	return session.ErrUnsupported
}

func (c *Client) SignInWithIDToken(context.Context, session.IDTokenCredentials) (*session.Session, error) {
	return nil, session.ErrUnsupported
}

// GetUser resolves the user accessToken belongs to.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*session.User, error) {
	u := c.userFor(c.context(ctx), &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	if u == nil {
		return nil, session.ErrInvalidSession
	}
	return u, nil
}

// SignOut revokes accessToken at the revocation endpoint. Without one it does nothing.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	if c.revocationURL == "" {
		return nil
	}

	form := url.Values{
		"token":           {accessToken},
		"token_type_hint": {"access_token"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.revocationURL, strings.NewReader(form.Encode()))
	if err != nil {
		return ierrors.Wrapf(err, "creating revocation request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if c.oauth.ClientID != "" {
		req.SetBasicAuth(url.QueryEscape(c.oauth.ClientID), url.QueryEscape(c.oauth.ClientSecret))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ierrors.Classify(session.ErrNetwork, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNoContent:
		return nil
	case resp.StatusCode >= http.StatusInternalServerError:
		return ierrors.Classify(session.ErrNetwork, fmt.Errorf("revocation endpoint returned %d", resp.StatusCode))
	default:
		return fmt.Errorf("revocation endpoint returned %d", resp.StatusCode)
	}
}

// classify maps token endpoint failures onto the session error classes.
func (c *Client) classify(ctx context.Context, err error) error {
	if re, ok := ierrors.As[*oauth2.RetrieveError](err); ok {
		status := 0
		if re.Response != nil {
			status = re.Response.StatusCode
		}
		c.logger.Debug().Err(err).Int("status", status).Str("code", re.ErrorCode).Msg("token request rejected")
		switch {
		case re.ErrorCode == oauthmodel.ErrorCodeInvalidGrant:
			return ierrors.Classify(session.ErrInvalidGrant, err)
		case status >= http.StatusInternalServerError || status == http.StatusTooManyRequests:
			return ierrors.Classify(session.ErrNetwork, err)
		}
		return err
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if _, ok := ierrors.As[*url.Error](err); ok {
		return ierrors.Classify(session.ErrNetwork, err)
	}
	return err
}

func (c *Client) toSession(ctx context.Context, tok *oauth2.Token) *session.Session {
	s := &session.Session{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    strings.ToLower(tok.Type()),
		ExpiresIn:    tok.ExpiresIn,
	}
	if !tok.Expiry.IsZero() {
		s.ExpiresAt = tok.Expiry.Unix()
	} else {
		s.ExpiresAt = token.ExpiresAt(tok.AccessToken)
	}
	if s.ExpiresIn == 0 && s.ExpiresAt > 0 {
		s.ExpiresIn = s.ExpiresAt - c.nowFunc().Unix()
	}
	if pt, ok := tok.Extra("provider_token").(string); ok {
		s.ProviderToken = pt
	}
	s.User = c.userFor(ctx, tok)
	return s
}

// userFor asks the userinfo endpoint when a provider was discovered and falls back to the
// access token's claims.
func (c *Client) userFor(ctx context.Context, tok *oauth2.Token) *session.User {
	if c.provider != nil {
		info, err := c.provider.UserInfo(ctx, oauth2.StaticTokenSource(tok))
		if err == nil {
			u := &session.User{
				ID:    info.Subject,
				Email: info.Email,
			}
			if info.EmailVerified {
				now := c.nowFunc()
				u.EmailConfirmedAt = &now
			}
			var claims map[string]any
			if err := info.Claims(&claims); err == nil {
				u.UserMetadata = claims
			}
			return u
		}
		c.logger.Debug().Err(err).Msg("userinfo request failed, using token claims")
	}

	claims, err := token.ParseUnverified(tok.AccessToken)
	if err != nil || claims.Subject == "" {
		return nil
	}
	u := &session.User{
		ID:    claims.Subject,
		Email: claims.Email,
		Role:  claims.Role,
	}
	if len(claims.Audience) > 0 {
		u.Aud = claims.Audience[0]
	}
	return u
}
