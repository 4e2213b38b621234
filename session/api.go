package session

import "context"

// API is the network collaborator the manager refreshes and revokes sessions through.
//
// Implementations classify failures: errors.Is(err, ErrNetwork) for transient transport
// failures and errors.Is(err, ErrInvalidGrant) when the refresh token was rejected.
type API interface {
	RefreshAccessToken(ctx context.Context, refreshToken string) (*Session, error)
	SignOut(ctx context.Context, accessToken string) error
}

// Authenticator is implemented by APIs that also offer interactive sign-in flows.
type Authenticator interface {
	SignInWithPassword(ctx context.Context, creds Credentials) (*Session, error)
	// SignUp returns a session when the service signs the user in immediately, otherwise
	// only the created user.
	SignUp(ctx context.Context, creds Credentials, opts SignUpOptions) (*Session, *User, error)
	VerifyOTP(ctx context.Context, params VerifyOTPParams) (*Session, error)
	// SendMagicLink and SendMobileOTP start a passwordless sign-in. The user finishes it
	// with VerifyOTP or by following the emailed link.
	SendMagicLink(ctx context.Context, email string, opts OTPOptions) error
	SendMobileOTP(ctx context.Context, phone string, opts OTPOptions) error
	SignInWithIDToken(ctx context.Context, creds IDTokenCredentials) (*Session, error)
	GetUser(ctx context.Context, accessToken string) (*User, error)
	UpdateUser(ctx context.Context, accessToken string, attrs UserAttributes) (*User, error)
}

// Credentials identify a user by email or phone.
type Credentials struct {
	Email    string
	Phone    string
	Password string
}

type SignUpOptions struct {
	RedirectTo   string         // Link target in the confirmation email
	Data         map[string]any // Initial user metadata
	CaptchaToken string
}

type OTPOptions struct {
	RedirectTo    string // Magic link target. Ignored for SMS
	DisableSignUp bool   // Fail instead of creating an unknown user
	CaptchaToken  string
}

// IDTokenCredentials sign in with an ID token issued by an external OpenID Connect provider.
// Either Provider or both ClientID and Issuer must be set.
type IDTokenCredentials struct {
	IDToken  string
	Nonce    string
	ClientID string
	Issuer   string
	Provider string
}

func (c IDTokenCredentials) valid() bool {
	return c.IDToken != "" && c.Nonce != "" && ((c.ClientID != "" && c.Issuer != "") || c.Provider != "")
}

type VerifyOTPParams struct {
	Email      string
	Phone      string
	Token      string
	Type       string // One of the oauthmodel OTP types, e.g. "sms" or "recovery"
	RedirectTo string
}

// UserAttributes are the fields UpdateUser can change. Empty fields are left alone.
type UserAttributes struct {
	Email    string         `json:"email,omitempty"`
	Phone    string         `json:"phone,omitempty"`
	Password string         `json:"password,omitempty"`
	Nonce    string         `json:"nonce,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}
