package session_test

import (
	"context"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-auth-client/session"
	"github.com/jrsteele09/go-auth-client/storage"
)

func TestSetAuth_DerivesUserFromClaims(t *testing.T) {
	f := setupTestFixture()
	store := f.backend.Open()
	m := f.newManager(t, f.api, store)
	rec := &eventRecorder{}
	m.OnAuthStateChange(rec.record)

	raw, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
		"sub":   "user-42",
		"email": "jane.doe@example.com",
		"role":  "authenticated",
		"aud":   "authenticated",
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	s := m.SetAuth(raw)
	require.Equal(t, raw, s.AccessToken)
	require.Equal(t, "bearer", s.TokenType)
	require.Equal(t, "user-42", s.User.ID)
	require.Equal(t, "jane.doe@example.com", s.User.Email)
	require.Equal(t, "authenticated", s.User.Aud)
	require.Equal(t, []session.Event{session.EventTokenRefreshed}, rec.list())

	require.Empty(t, f.clock.pending())
	_, err = store.Get(context.Background(), session.DefaultStorageKey)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSetAuth_KeepsUserAndRefreshToken(t *testing.T) {
	f := setupTestFixture()
	m := f.newManager(t, f.api, f.backend.Open())
	_, err := m.SetSession(context.Background(), "refresh-0")
	require.NoError(t, err)

	s := m.SetAuth("opaque-token")
	require.Equal(t, "opaque-token", s.AccessToken)
	require.Equal(t, "refresh-1", s.RefreshToken)
	require.Equal(t, "user-1", s.User.ID)
	require.Equal(t, "opaque-token", m.AccessToken())
}

func TestSignInWithPassword(t *testing.T) {
	f := setupTestFixture()
	m := f.newManager(t, f.api, f.backend.Open())
	rec := &eventRecorder{}
	m.OnAuthStateChange(rec.record)

	f.api.signInSession = f.api.issue(7)
	s, err := m.SignInWithPassword(context.Background(), session.Credentials{Email: "john.doe@example.com", Password: "password"})
	require.NoError(t, err)
	require.Equal(t, "access-7", s.AccessToken)
	require.Equal(t, "access-7", m.AccessToken())
	require.Equal(t, []session.Event{session.EventSignedIn}, rec.list())
	require.Len(t, f.clock.pending(), 1)
}

func TestSignInWithPassword_UnconfirmedUserIsNotAdopted(t *testing.T) {
	f := setupTestFixture()
	m := f.newManager(t, f.api, f.backend.Open())
	rec := &eventRecorder{}
	m.OnAuthStateChange(rec.record)

	unconfirmed := f.api.issue(8)
	unconfirmed.User.EmailConfirmedAt = nil
	f.api.signInSession = unconfirmed

	s, err := m.SignInWithPassword(context.Background(), session.Credentials{Email: "john.doe@example.com", Password: "password"})
	require.NoError(t, err)
	require.Equal(t, "access-8", s.AccessToken)
	require.Nil(t, m.Session())
	require.Empty(t, rec.list())
}

func TestSignInWithPassword_ConfirmationMatchesCredential(t *testing.T) {
	emailOnly := testUser()
	phoneOnly := testUser()
	phoneOnly.EmailConfirmedAt = nil
	confirmed := testNow.Add(-time.Hour)
	phoneOnly.PhoneConfirmedAt = &confirmed

	tests := []struct {
		name    string
		creds   session.Credentials
		user    *session.User
		adopted bool
	}{
		{"email with confirmed email", session.Credentials{Email: "john.doe@example.com", Password: "password"}, emailOnly, true},
		{"email with confirmed phone only", session.Credentials{Email: "john.doe@example.com", Password: "password"}, phoneOnly, false},
		{"phone with confirmed phone", session.Credentials{Phone: "+441234567890", Password: "password"}, phoneOnly, true},
		{"phone with confirmed email only", session.Credentials{Phone: "+441234567890", Password: "password"}, emailOnly, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTestFixture()
			m := f.newManager(t, f.api, f.backend.Open())
			s := f.api.issue(7)
			s.User = tt.user.Clone()
			f.api.signInSession = s

			_, err := m.SignInWithPassword(context.Background(), tt.creds)
			require.NoError(t, err)
			require.Equal(t, tt.adopted, m.Session() != nil)
		})
	}
}

func TestSignInWithPassword_IncompleteCredentials(t *testing.T) {
	f := setupTestFixture()
	m := f.newManager(t, f.api, f.backend.Open())

	_, err := m.SignInWithPassword(context.Background(), session.Credentials{Email: "john.doe@example.com"})
	require.ErrorIs(t, err, session.ErrInvalidCredentials)
	_, err = m.SignInWithPassword(context.Background(), session.Credentials{Password: "password"})
	require.ErrorIs(t, err, session.ErrInvalidCredentials)
}

func TestSendOTP_ClearsSession(t *testing.T) {
	f := setupTestFixture()
	store := f.backend.Open()
	m := f.newManager(t, f.api, store)
	_, err := m.SetSession(context.Background(), "refresh-0")
	require.NoError(t, err)

	require.NoError(t, m.SendMagicLink(context.Background(), "john.doe@example.com", session.OTPOptions{}))
	require.Nil(t, m.Session())
	_, err = store.Get(context.Background(), session.DefaultStorageKey)
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, m.SendMobileOTP(context.Background(), "+441234567890", session.OTPOptions{}))
	require.Equal(t, []string{"john.doe@example.com", "+441234567890"}, f.api.otpTargets)

	require.ErrorIs(t, m.SendMagicLink(context.Background(), "", session.OTPOptions{}), session.ErrInvalidCredentials)
	require.ErrorIs(t, m.SendMobileOTP(context.Background(), "", session.OTPOptions{}), session.ErrInvalidCredentials)
}

func TestSignInWithIDToken(t *testing.T) {
	f := setupTestFixture()
	m := f.newManager(t, f.api, f.backend.Open())
	rec := &eventRecorder{}
	m.OnAuthStateChange(rec.record)

	_, err := m.SignInWithIDToken(context.Background(), session.IDTokenCredentials{IDToken: "id-token", Nonce: "nonce"})
	require.ErrorIs(t, err, session.ErrInvalidCredentials)
	_, err = m.SignInWithIDToken(context.Background(), session.IDTokenCredentials{IDToken: "id-token", Nonce: "nonce", ClientID: "client"})
	require.ErrorIs(t, err, session.ErrInvalidCredentials)

	s, err := m.SignInWithIDToken(context.Background(), session.IDTokenCredentials{IDToken: "id-token", Nonce: "nonce", ClientID: "client", Issuer: "https://accounts.example.com"})
	require.NoError(t, err)
	require.Equal(t, "access-200", s.AccessToken)
	require.Equal(t, "access-200", m.AccessToken())
	require.Equal(t, []session.Event{session.EventSignedIn}, rec.list())
	require.Len(t, f.clock.pending(), 1)
}

func TestSignUp_WithoutSession(t *testing.T) {
	f := setupTestFixture()
	m := f.newManager(t, f.api, f.backend.Open())

	s, u, err := m.SignUp(context.Background(), session.Credentials{Email: "new@example.com", Password: "password"}, session.SignUpOptions{})
	require.NoError(t, err)
	require.Nil(t, s)
	require.Equal(t, "new-user", u.ID)
	require.Nil(t, m.Session())
}

func TestVerifyOTP_RecoveryEmitsPasswordRecovery(t *testing.T) {
	f := setupTestFixture()
	m := f.newManager(t, f.api, f.backend.Open())
	rec := &eventRecorder{}
	m.OnAuthStateChange(rec.record)

	s, err := m.VerifyOTP(context.Background(), session.VerifyOTPParams{Email: "john.doe@example.com", Token: "123456", Type: "recovery"})
	require.NoError(t, err)
	require.Equal(t, "access-100", s.AccessToken)
	require.Equal(t, []session.Event{session.EventSignedIn, session.EventPasswordRecovery}, rec.list())

	rec.reset()
	_, err = m.VerifyOTP(context.Background(), session.VerifyOTPParams{Phone: "+441234567890", Token: "123456", Type: "sms"})
	require.NoError(t, err)
	require.Equal(t, []session.Event{session.EventSignedIn}, rec.list())
}

func TestUpdateUser(t *testing.T) {
	f := setupTestFixture()
	m := f.newManager(t, f.api, f.backend.Open())

	_, err := m.UpdateUser(context.Background(), session.UserAttributes{Email: "new@example.com"})
	require.ErrorIs(t, err, session.ErrNoSession)

	_, err = m.SetSession(context.Background(), "refresh-0")
	require.NoError(t, err)
	rec := &eventRecorder{}
	m.OnAuthStateChange(rec.record)

	u, err := m.UpdateUser(context.Background(), session.UserAttributes{Email: "new@example.com"})
	require.NoError(t, err)
	require.Equal(t, "new@example.com", u.Email)
	require.Equal(t, "new@example.com", m.User().Email)
	require.Equal(t, "access-1", m.AccessToken())
	require.Equal(t, []session.Event{session.EventUserUpdated}, rec.list())
}

func TestFetchUser(t *testing.T) {
	f := setupTestFixture()
	m := f.newManager(t, f.api, f.backend.Open())

	_, err := m.FetchUser(context.Background())
	require.ErrorIs(t, err, session.ErrNoSession)

	_, err = m.SetSession(context.Background(), "refresh-0")
	require.NoError(t, err)

	u, err := m.FetchUser(context.Background())
	require.NoError(t, err)
	require.Equal(t, "+441234567890", u.Phone)
	require.Equal(t, "+441234567890", m.User().Phone)
}

func TestAuthenticatorFlows_Unsupported(t *testing.T) {
	f := setupTestFixture()
	m := f.newManager(t, refreshOnlyAPI{API: f.api}, f.backend.Open())

	_, err := m.SignInWithPassword(context.Background(), session.Credentials{})
	require.ErrorIs(t, err, session.ErrUnsupported)
	_, _, err = m.SignUp(context.Background(), session.Credentials{}, session.SignUpOptions{})
	require.ErrorIs(t, err, session.ErrUnsupported)
	_, err = m.VerifyOTP(context.Background(), session.VerifyOTPParams{})
	require.ErrorIs(t, err, session.ErrUnsupported)
	_, err = m.UpdateUser(context.Background(), session.UserAttributes{})
	require.ErrorIs(t, err, session.ErrUnsupported)
	_, err = m.FetchUser(context.Background())
	require.ErrorIs(t, err, session.ErrUnsupported)
	require.ErrorIs(t, m.SendMagicLink(context.Background(), "john.doe@example.com", session.OTPOptions{}), session.ErrUnsupported)
	require.ErrorIs(t, m.SendMobileOTP(context.Background(), "+441234567890", session.OTPOptions{}), session.ErrUnsupported)
	_, err = m.SignInWithIDToken(context.Background(), session.IDTokenCredentials{})
	require.ErrorIs(t, err, session.ErrUnsupported)
}

func TestUser_Confirmed(t *testing.T) {
	var nilUser *session.User
	require.False(t, nilUser.Confirmed())
	require.False(t, (&session.User{ID: "u"}).Confirmed())
	require.True(t, testUser().Confirmed())
	require.True(t, testUser().EmailConfirmed())
	require.False(t, testUser().PhoneConfirmed())
	require.False(t, nilUser.EmailConfirmed())
}
