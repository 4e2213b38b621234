// Package token extracts the claims a client needs from bearer tokens it holds.
//
// Claims are read without signature verification: a client cannot verify tokens minted for a
// resource server and only uses them as hints (expiry, subject) for its own bookkeeping.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-auth-client/internal/utils"
)

// ErrNotJWT is returned when the token is not a structurally valid JWT.
var ErrNotJWT = errors.New("token is not a JWT")

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Claims is the unverified subset of an access token's claims.
type Claims struct {
	Subject   string    // sub
	Email     string    // email
	Role      string    // role (GoTrue) or the first entry of roles
	Roles     []string  // roles
	Audience  []string  // aud
	Issuer    string    // iss
	SessionID string    // session_id (GoTrue)
	IssuedAt  time.Time // iat
	ExpiresAt time.Time // exp, zero when absent
}

// ParseUnverified decodes the claims of rawToken without checking its signature.
func ParseUnverified(rawToken string) (*Claims, error) {
	if strings.Count(rawToken, ".") != 2 {
		return nil, ErrNotJWT
	}

	parsed, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotJWT, err)
	}

	mc, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, errors.New("error extracting claims")
	}

	c := &Claims{
		Roles:    utils.ToStringSlice(mc["roles"]),
		Audience: utils.ToStringSlice(mc["aud"]),
	}
	c.Subject, _ = mc["sub"].(string)
	c.Email, _ = mc["email"].(string)
	c.Role, _ = mc["role"].(string)
	c.Issuer, _ = mc["iss"].(string)
	c.SessionID, _ = mc["session_id"].(string)

	if c.Role == "" && len(c.Roles) > 0 {
		c.Role = c.Roles[0]
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	if iat, err := mc.GetIssuedAt(); err == nil && iat != nil {
		c.IssuedAt = iat.Time
	}
	return c, nil
}

// ExpiresAt returns the token's exp claim as epoch seconds, or 0 when the token is not a JWT
// or carries no expiry.
func ExpiresAt(rawToken string) int64 {
	c, err := ParseUnverified(rawToken)
	if err != nil || c.ExpiresAt.IsZero() {
		return 0
	}
	return c.ExpiresAt.Unix()
}

// Expired reports whether the claims carry an expiry that has passed.
func (c *Claims) Expired() bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return NowTimeFunc().After(c.ExpiresAt)
}
