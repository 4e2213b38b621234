package oauthmodel

import "strings"

// Error codes returned by token endpoints (RFC 6749 section 5.2).
const (
	ErrorCodeInvalidGrant   = "invalid_grant"
	ErrorCodeInvalidRequest = "invalid_request"
	ErrorCodeInvalidClient  = "invalid_client"
)

// ErrorResponse is the error body of a token or user endpoint. GoTrue mixes the RFC 6749
// shape (error, error_description) with its own (code, msg, message), so all are decoded.
type ErrorResponse struct {
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
	Code             int    `json:"code,omitempty"`
	Msg              string `json:"msg,omitempty"`
	Message          string `json:"message,omitempty"`
}

// Description returns the most specific human readable message available.
func (e ErrorResponse) Description() string {
	for _, s := range []string{e.ErrorDescription, e.Msg, e.Message, e.Error} {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// IsInvalidGrant reports whether the server rejected the presented grant.
func (e ErrorResponse) IsInvalidGrant() bool {
	return e.Error == ErrorCodeInvalidGrant
}
