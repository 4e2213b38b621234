package gotrue

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/jrsteele09/go-auth-client/internal/utils"
	"github.com/jrsteele09/go-auth-client/oauthmodel"
	"github.com/jrsteele09/go-auth-client/session"
)

type captcha struct {
	CaptchaToken string `json:"captcha_token,omitempty"`
}

type credentialsBody struct {
	Email    string         `json:"email,omitempty"`
	Phone    string         `json:"phone,omitempty"`
	Password string         `json:"password,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
	Security *captcha       `json:"gotrue_meta_security,omitempty"`
}

type verifyBody struct {
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Token      string `json:"token"`
	Type       string `json:"type"`
	RedirectTo string `json:"redirect_to,omitempty"`
}

type otpBody struct {
	Email      string   `json:"email,omitempty"`
	Phone      string   `json:"phone,omitempty"`
	CreateUser bool     `json:"create_user"`
	Security   *captcha `json:"gotrue_meta_security,omitempty"`
}

type idTokenBody struct {
	IDToken  string `json:"id_token"`
	Nonce    string `json:"nonce"`
	ClientID string `json:"client_id,omitempty"`
	Issuer   string `json:"issuer,omitempty"`
	Provider string `json:"provider,omitempty"`
}

func grantQuery(g oauthmodel.GrantType) url.Values {
	return url.Values{"grant_type": {string(g)}}
}

// RefreshAccessToken exchanges refreshToken for a new session.
func (c *Client) RefreshAccessToken(ctx context.Context, refreshToken string) (*session.Session, error) {
	var tr oauthmodel.TokenResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/token",
		query:  grantQuery(oauthmodel.RefreshTokenGrant),
		body:   map[string]string{"refresh_token": refreshToken},
		grant:  oauthmodel.RefreshTokenGrant,
	}, &tr)
	if err != nil {
		return nil, err
	}
	return c.toSession(tr)
}

// SignOut revokes the refresh tokens of the session accessToken belongs to.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	return c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/logout",
		accessToken: accessToken,
	}, nil)
}

func (c *Client) SignInWithPassword(ctx context.Context, creds session.Credentials) (*session.Session, error) {
	var tr oauthmodel.TokenResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/token",
		query:  grantQuery(oauthmodel.PasswordGrant),
		body:   credentialsBody{Email: creds.Email, Phone: creds.Phone, Password: creds.Password},
		grant:  oauthmodel.PasswordGrant,
	}, &tr)
	if err != nil {
		return nil, err
	}
	return c.toSession(tr)
}

// SignUp registers a user. Servers with auto-confirm answer with a session, the others with
// the unconfirmed user only.
func (c *Client) SignUp(ctx context.Context, creds session.Credentials, opts session.SignUpOptions) (*session.Session, *session.User, error) {
	body := credentialsBody{
		Email:    creds.Email,
		Phone:    creds.Phone,
		Password: creds.Password,
		Data:     opts.Data,
	}
	if opts.CaptchaToken != "" {
		body.Security = &captcha{CaptchaToken: opts.CaptchaToken}
	}
	var query url.Values
	if opts.RedirectTo != "" && creds.Phone == "" {
		query = url.Values{"redirect_to": {opts.RedirectTo}}
	}

	var raw json.RawMessage
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/signup",
		query:  query,
		body:   body,
	}, &raw)
	if err != nil {
		return nil, nil, err
	}

	var tr oauthmodel.TokenResponse
	if err := json.Unmarshal(raw, &tr); err != nil {
		return nil, nil, err
	}
	if tr.HasAccessToken() {
		s, err := c.toSession(tr)
		if err != nil {
			return nil, nil, err
		}
		return s, s.User, nil
	}

	var u session.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, nil, err
	}
	if u.ID == "" {
		return nil, nil, session.ErrInvalidSession
	}
	return nil, &u, nil
}

func (c *Client) VerifyOTP(ctx context.Context, params session.VerifyOTPParams) (*session.Session, error) {
	var tr oauthmodel.TokenResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/verify",
		body: verifyBody{
			Email:      params.Email,
			Phone:      params.Phone,
			Token:      params.Token,
			Type:       params.Type,
			RedirectTo: params.RedirectTo,
		},
	}, &tr)
	if err != nil {
		return nil, err
	}
	return c.toSession(tr)
}

// SendMagicLink emails a sign-in link and code to email.
func (c *Client) SendMagicLink(ctx context.Context, email string, opts session.OTPOptions) error {
	var query url.Values
	if opts.RedirectTo != "" {
		query = url.Values{"redirect_to": {opts.RedirectTo}}
	}
	return c.sendOTP(ctx, query, otpBody{Email: email}, opts)
}

// SendMobileOTP texts a one-time password to phone.
func (c *Client) SendMobileOTP(ctx context.Context, phone string, opts session.OTPOptions) error {
	return c.sendOTP(ctx, nil, otpBody{Phone: phone}, opts)
}

func (c *Client) sendOTP(ctx context.Context, query url.Values, body otpBody, opts session.OTPOptions) error {
	body.CreateUser = !opts.DisableSignUp
	if opts.CaptchaToken != "" {
		body.Security = &captcha{CaptchaToken: opts.CaptchaToken}
	}
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   "/otp",
		query:  query,
		body:   body,
	}, nil)
}

// SignInWithIDToken exchanges an external OpenID Connect ID token for a session.
func (c *Client) SignInWithIDToken(ctx context.Context, creds session.IDTokenCredentials) (*session.Session, error) {
	var tr oauthmodel.TokenResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/token",
		query:  grantQuery(oauthmodel.IDTokenGrant),
		body: idTokenBody{
			IDToken:  creds.IDToken,
			Nonce:    creds.Nonce,
			ClientID: creds.ClientID,
			Issuer:   creds.Issuer,
			Provider: creds.Provider,
		},
		grant: oauthmodel.IDTokenGrant,
	}, &tr)
	if err != nil {
		return nil, err
	}
	return c.toSession(tr)
}

func (c *Client) GetUser(ctx context.Context, accessToken string) (*session.User, error) {
	var u session.User
	err := c.do(ctx, request{
		method:      http.MethodGet,
		path:        "/user",
		accessToken: accessToken,
	}, &u)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) UpdateUser(ctx context.Context, accessToken string, attrs session.UserAttributes) (*session.User, error) {
	var u session.User
	err := c.do(ctx, request{
		method:      http.MethodPut,
		path:        "/user",
		accessToken: accessToken,
		body:        attrs,
	}, &u)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// toSession converts a token response. expires_at is derived from expires_in when the
// server left it out.
func (c *Client) toSession(tr oauthmodel.TokenResponse) (*session.Session, error) {
	if !tr.HasAccessToken() {
		return nil, session.ErrInvalidSession
	}

	s := &session.Session{
		AccessToken:   utils.Value(tr.AccessToken),
		RefreshToken:  utils.Value(tr.RefreshToken),
		TokenType:     tr.TokenType,
		ExpiresIn:     tr.ExpiresIn,
		ExpiresAt:     tr.ExpiresAt,
		ProviderToken: utils.Value(tr.ProviderToken),
	}
	if s.ExpiresAt == 0 && s.ExpiresIn > 0 {
		s.ExpiresAt = c.nowFunc().Unix() + s.ExpiresIn
	}
	if len(tr.User) > 0 && string(tr.User) != "null" {
		var u session.User
		if err := json.Unmarshal(tr.User, &u); err != nil {
			return nil, err
		}
		s.User = &u
	}
	return s, nil
}
