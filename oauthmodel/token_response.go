package oauthmodel

import "encoding/json"

// TokenResponse represents the body returned by a token endpoint.
// It is the RFC 6749 token response with the GoTrue extensions (expires_at, user).
// Pointer fields distinguish "absent" from "empty" so callers can reject partial responses.
type TokenResponse struct {
	// AccessToken is the bearer credential sent with every authenticated request.
	// Example: "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."
	// Usage: "Authorization: Bearer <access_token>"
	AccessToken *string `json:"access_token,omitempty"`

	// IdToken is the OpenID Connect ID token.
	// Only present: when the "openid" scope was granted
	IdToken *string `json:"id_token,omitempty"`

	// TokenType indicates how to use the access token.
	// Example: "bearer"
	TokenType string `json:"token_type,omitempty"`

	// ExpiresIn is the lifetime in seconds of the access token, as issued.
	// Example: 3600
	ExpiresIn int64 `json:"expires_in,omitempty"`

	// ExpiresAt is the absolute expiry in epoch seconds.
	// Only present: GoTrue responses. Clients compute now + ExpiresIn when missing.
	ExpiresAt int64 `json:"expires_at,omitempty"`

	// RefreshToken is the opaque single-use token exchanged for a new access token.
	// Example: "tGzv3JOkF0XG5Qx2TlKWIA"
	// Behavior: rotated on every refresh, the old value becomes invalid
	RefreshToken *string `json:"refresh_token,omitempty"`

	// ProviderToken is the upstream identity provider's token (OAuth sign-ins only).
	ProviderToken *string `json:"provider_token,omitempty"`

	// Scope is the space separated list of granted scopes.
	Scope string `json:"scope,omitempty"`

	// User is the user record embedded by GoTrue. It is kept raw so the session
	// package owns its shape.
	User json.RawMessage `json:"user,omitempty"`
}

// HasAccessToken reports whether the response carries a usable access token.
func (t TokenResponse) HasAccessToken() bool {
	return t.AccessToken != nil && *t.AccessToken != ""
}
