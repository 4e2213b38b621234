package session

import (
	"maps"
	"time"
)

// Session is the set of credentials issued by the auth service for one signed-in user.
type Session struct {
	AccessToken   string `json:"access_token"`             // Bearer token sent with every request
	RefreshToken  string `json:"refresh_token,omitempty"`  // Exchanged for a new Session before AccessToken expires
	TokenType     string `json:"token_type,omitempty"`     // Always "bearer" in practice
	ExpiresIn     int64  `json:"expires_in,omitempty"`     // Lifetime in seconds as issued
	ExpiresAt     int64  `json:"expires_at,omitempty"`     // Absolute expiry, epoch seconds. 0 when unknown
	ProviderToken string `json:"provider_token,omitempty"` // Upstream identity provider token, when one was issued
	User          *User  `json:"user,omitempty"`
}

// Clone returns a deep copy of s. A nil Session clones to nil.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.User = s.User.Clone()
	return &c
}

// Expiry returns ExpiresAt as a time, or the zero time when it is unknown.
func (s *Session) Expiry() time.Time {
	if s == nil || s.ExpiresAt == 0 {
		return time.Time{}
	}
	return time.Unix(s.ExpiresAt, 0)
}

// User is the account record owned by the auth service. The manager stores it and hands it
// back but never interprets it beyond Confirmed.
type User struct {
	ID               string         `json:"id"`
	Aud              string         `json:"aud,omitempty"`
	Role             string         `json:"role,omitempty"`
	Email            string         `json:"email,omitempty"`
	Phone            string         `json:"phone,omitempty"`
	ConfirmedAt      *time.Time     `json:"confirmed_at,omitempty"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at,omitempty"`
	PhoneConfirmedAt *time.Time     `json:"phone_confirmed_at,omitempty"`
	AppMetadata      map[string]any `json:"app_metadata,omitempty"`
	UserMetadata     map[string]any `json:"user_metadata,omitempty"`
	CreatedAt        *time.Time     `json:"created_at,omitempty"`
	UpdatedAt        *time.Time     `json:"updated_at,omitempty"`
}

// Clone returns a copy of u. Metadata maps are copied one level deep.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.AppMetadata = maps.Clone(u.AppMetadata)
	c.UserMetadata = maps.Clone(u.UserMetadata)
	return &c
}

// Confirmed reports whether the user confirmed their email, their phone, or the account.
func (u *User) Confirmed() bool {
	if u == nil {
		return false
	}
	return u.ConfirmedAt != nil || u.EmailConfirmedAt != nil || u.PhoneConfirmedAt != nil
}

// EmailConfirmed reports whether the user confirmed their email address.
func (u *User) EmailConfirmed() bool {
	return u != nil && (u.ConfirmedAt != nil || u.EmailConfirmedAt != nil)
}

// PhoneConfirmed reports whether the user confirmed their phone number.
func (u *User) PhoneConfirmed() bool {
	return u != nil && u.PhoneConfirmedAt != nil
}

// Event names an auth state transition delivered to subscribers.
type Event string

const (
	EventSignedIn         Event = "SIGNED_IN"
	EventSignedOut        Event = "SIGNED_OUT"
	EventTokenRefreshed   Event = "TOKEN_REFRESHED"
	EventUserUpdated      Event = "USER_UPDATED"
	EventPasswordRecovery Event = "PASSWORD_RECOVERY"
)

// persistedRecord is the JSON document written under the storage key.
type persistedRecord struct {
	CurrentSession *Session `json:"currentSession"`
	ExpiresAt      int64    `json:"expiresAt"`
}
