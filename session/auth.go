package session

import (
	"context"
	"fmt"

	"github.com/jrsteele09/go-auth-client/oauthmodel"
	"github.com/jrsteele09/go-auth-client/token"
)

// SignOut clears the session locally, emits SIGNED_OUT and then revokes the access token
// with the auth service. The local session is gone even when revocation fails.
func (m *Manager) SignOut(ctx context.Context) error {
	accessToken := m.AccessToken()
	m.removeSession(true)
	m.notify(EventSignedOut)

	if accessToken == "" {
		return nil
	}
	return m.api.SignOut(ctx, accessToken)
}

// RefreshSession forces a refresh of the current session.
func (m *Manager) RefreshSession(ctx context.Context) (*Session, error) {
	if m.AccessToken() == "" {
		return nil, ErrNoSession
	}
	return m.callRefreshToken(ctx, "")
}

// SetSession replaces the current session with one obtained from refreshToken.
// Only SIGNED_IN is emitted.
func (m *Manager) SetSession(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, ErrNoSession
	}
	epoch := m.sessionEpoch()
	s, err := m.api.RefreshAccessToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if s == nil || s.AccessToken == "" {
		return nil, ErrInvalidSession
	}
	if !m.saveSessionAt(s, true, epoch) {
		return nil, errSessionRemoved
	}
	m.notify(EventSignedIn)
	return s.Clone(), nil
}

// SetAuth overrides the access token of the current session, or starts a token-only session,
// and emits TOKEN_REFRESHED. Nothing is persisted and no refresh is scheduled.
// When no user is known one is derived from the token's claims if it is a JWT.
func (m *Manager) SetAuth(accessToken string) *Session {
	m.mu.Lock()
	s := m.current.Clone()
	if s == nil {
		s = &Session{}
	}
	s.AccessToken = accessToken
	s.TokenType = oauthmodel.TokenTypeBearer
	if s.User == nil {
		s.User = userFromToken(accessToken)
	}
	m.current = s
	out := s.Clone()
	m.mu.Unlock()

	m.notify(EventTokenRefreshed)
	return out
}

func userFromToken(accessToken string) *User {
	claims, err := token.ParseUnverified(accessToken)
	if err != nil || claims.Subject == "" {
		return nil
	}
	u := &User{
		ID:    claims.Subject,
		Email: claims.Email,
		Role:  claims.Role,
	}
	if len(claims.Audience) > 0 {
		u.Aud = claims.Audience[0]
	}
	return u
}

func (m *Manager) authenticator() (Authenticator, error) {
	a, ok := m.api.(Authenticator)
	if !ok {
		return nil, ErrUnsupported
	}
	return a, nil
}

// SignInWithPassword clears any session and signs in with creds. The returned session is
// adopted only when the user has confirmed the email or phone number signed in with;
// otherwise it is returned unsaved.
func (m *Manager) SignInWithPassword(ctx context.Context, creds Credentials) (*Session, error) {
	a, err := m.authenticator()
	if err != nil {
		return nil, err
	}
	if creds.Password == "" || (creds.Email == "" && creds.Phone == "") {
		return nil, fmt.Errorf("%w: an email or phone number and a password are required", ErrInvalidCredentials)
	}
	m.removeSession(true)
	epoch := m.sessionEpoch()

	s, err := a.SignInWithPassword(ctx, creds)
	if err != nil {
		return nil, err
	}
	if s == nil || s.AccessToken == "" {
		return nil, ErrInvalidSession
	}

	confirmed := s.User.EmailConfirmed()
	if creds.Email == "" {
		confirmed = s.User.PhoneConfirmed()
	}
	if confirmed {
		if !m.saveSessionAt(s, true, epoch) {
			return nil, errSessionRemoved
		}
		m.notify(EventSignedIn)
	}
	return s.Clone(), nil
}

// SendMagicLink clears any session and emails a sign-in link or code to email.
func (m *Manager) SendMagicLink(ctx context.Context, email string, opts OTPOptions) error {
	a, err := m.authenticator()
	if err != nil {
		return err
	}
	if email == "" {
		return fmt.Errorf("%w: an email is required", ErrInvalidCredentials)
	}
	m.removeSession(true)
	return a.SendMagicLink(ctx, email, opts)
}

// SendMobileOTP clears any session and texts a one-time password to phone.
func (m *Manager) SendMobileOTP(ctx context.Context, phone string, opts OTPOptions) error {
	a, err := m.authenticator()
	if err != nil {
		return err
	}
	if phone == "" {
		return fmt.Errorf("%w: a phone number is required", ErrInvalidCredentials)
	}
	m.removeSession(true)
	return a.SendMobileOTP(ctx, phone, opts)
}

// SignInWithIDToken clears any session and signs in with an external provider's ID token.
func (m *Manager) SignInWithIDToken(ctx context.Context, creds IDTokenCredentials) (*Session, error) {
	a, err := m.authenticator()
	if err != nil {
		return nil, err
	}
	if !creds.valid() {
		return nil, fmt.Errorf("%w: an ID token and nonce with a provider, or a client ID and issuer, are required", ErrInvalidCredentials)
	}
	m.removeSession(true)
	epoch := m.sessionEpoch()

	s, err := a.SignInWithIDToken(ctx, creds)
	if err != nil {
		return nil, err
	}
	if s == nil || s.AccessToken == "" {
		return nil, ErrInvalidSession
	}
	if !m.saveSessionAt(s, true, epoch) {
		return nil, errSessionRemoved
	}
	m.notify(EventSignedIn)
	return s.Clone(), nil
}

// SignUp clears any session and registers a user. When the service signs the user in
// straight away the session is adopted.
func (m *Manager) SignUp(ctx context.Context, creds Credentials, opts SignUpOptions) (*Session, *User, error) {
	a, err := m.authenticator()
	if err != nil {
		return nil, nil, err
	}
	m.removeSession(true)
	epoch := m.sessionEpoch()

	s, u, err := a.SignUp(ctx, creds, opts)
	if err != nil {
		return nil, nil, err
	}
	if s != nil && s.AccessToken != "" {
		if !m.saveSessionAt(s, true, epoch) {
			return nil, nil, errSessionRemoved
		}
		m.notify(EventSignedIn)
		if u == nil {
			u = s.User
		}
	} else {
		s = nil
	}
	return s.Clone(), u.Clone(), nil
}

// VerifyOTP clears any session and exchanges a one-time password for a session.
// A recovery verification also emits PASSWORD_RECOVERY.
func (m *Manager) VerifyOTP(ctx context.Context, params VerifyOTPParams) (*Session, error) {
	a, err := m.authenticator()
	if err != nil {
		return nil, err
	}
	m.removeSession(true)
	epoch := m.sessionEpoch()

	s, err := a.VerifyOTP(ctx, params)
	if err != nil {
		return nil, err
	}
	if s == nil || s.AccessToken == "" {
		return nil, ErrInvalidSession
	}
	if !m.saveSessionAt(s, true, epoch) {
		return nil, errSessionRemoved
	}
	m.notify(EventSignedIn)
	if params.Type == string(oauthmodel.OTPTypeRecovery) {
		m.notify(EventPasswordRecovery)
	}
	return s.Clone(), nil
}

// UpdateUser changes the signed-in user's attributes and emits USER_UPDATED.
func (m *Manager) UpdateUser(ctx context.Context, attrs UserAttributes) (*User, error) {
	a, err := m.authenticator()
	if err != nil {
		return nil, err
	}
	epoch := m.sessionEpoch()
	s := m.Session()
	if s == nil || s.AccessToken == "" {
		return nil, ErrNoSession
	}

	u, err := a.UpdateUser(ctx, s.AccessToken, attrs)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("%w: no user in response", ErrInvalidSession)
	}
	s.User = u
	if !m.saveSessionAt(s, true, epoch) {
		return nil, errSessionRemoved
	}
	m.notify(EventUserUpdated)
	return u.Clone(), nil
}

// FetchUser loads the signed-in user from the auth service and stores it on the current
// session without emitting an event.
func (m *Manager) FetchUser(ctx context.Context) (*User, error) {
	a, err := m.authenticator()
	if err != nil {
		return nil, err
	}
	accessToken := m.AccessToken()
	if accessToken == "" {
		return nil, ErrNoSession
	}

	u, err := a.GetUser(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("%w: no user in response", ErrInvalidSession)
	}

	m.mu.Lock()
	if m.current != nil && m.current.AccessToken == accessToken {
		m.current.User = u.Clone()
	}
	m.mu.Unlock()
	return u.Clone(), nil
}
