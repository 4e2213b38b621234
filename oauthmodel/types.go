package oauthmodel

// GrantType represents the OAuth 2.0 grant type used at the token endpoint.
// Determines what credentials are required to obtain tokens.
type GrantType string

const (
	// RefreshTokenGrant exchanges a refresh token for new tokens.
	// Used in: session refresh (background timer, RefreshSession, SetSession)
	// Token request includes: refresh_token
	// Returns: new access_token and rotated refresh_token
	RefreshTokenGrant GrantType = "refresh_token"

	// PasswordGrant exchanges user credentials for tokens.
	// Used in: email/phone + password sign in
	// Token request includes: email or phone, password
	PasswordGrant GrantType = "password"

	// IDTokenGrant exchanges an ID token from an external OpenID Connect provider.
	// Token request includes: id_token, nonce, and client_id + issuer or provider
	IDTokenGrant GrantType = "id_token"
)

// TokenTypeBearer is the only token type this client issues requests with.
const TokenTypeBearer = "bearer"

// OTPType is the verification flavour sent to the verify endpoint.
type OTPType string

const (
	OTPTypeSMS         OTPType = "sms"
	OTPTypePhoneChange OTPType = "phone_change"
	OTPTypeSignup      OTPType = "signup"
	OTPTypeInvite      OTPType = "invite"
	OTPTypeMagicLink   OTPType = "magiclink"
	OTPTypeRecovery    OTPType = "recovery"
	OTPTypeEmailChange OTPType = "email_change"
)
