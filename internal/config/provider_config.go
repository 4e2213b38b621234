package config

import (
	"github.com/jrsteele09/go-auth-client/oauthapi"
	"github.com/jrsteele09/go-auth-client/session"
)

const (
	ProviderGoTrue = "gotrue"
	ProviderOAuth2 = "oauth2"
)

type ProviderConfig interface {
	GetProviderKind() string
	GetAuthURL() string
	GetAPIKey() string
	GetOAuth2Config() oauthapi.Config
	GetCredentials() session.Credentials
}

type Provider struct {
	Kind          string   `env:"AUTH_PROVIDER" envDefault:"gotrue"`
	AuthURL       string   `env:"AUTH_URL"`     // Project URL, e.g. "https://project.example.com"
	APIKey        string   `env:"AUTH_API_KEY"` // Public (anon) key
	ClientID      string   `env:"OAUTH2_CLIENT_ID"`
	ClientSecret  string   `env:"OAUTH2_CLIENT_SECRET"`
	Issuer        string   `env:"OAUTH2_ISSUER"`
	TokenURL      string   `env:"OAUTH2_TOKEN_URL"`
	RevocationURL string   `env:"OAUTH2_REVOCATION_URL"`
	Scopes        []string `env:"OAUTH2_SCOPES" envSeparator:","`
	Email         string   `env:"AUTH_EMAIL"`
	Phone         string   `env:"AUTH_PHONE"`
	Password      string   `env:"AUTH_PASSWORD"`
}

var _ ProviderConfig = Provider{}

func (p Provider) GetProviderKind() string {
	return p.Kind
}

func (p Provider) GetAuthURL() string {
	return p.AuthURL
}

func (p Provider) GetAPIKey() string {
	return p.APIKey
}

func (p Provider) GetOAuth2Config() oauthapi.Config {
	return oauthapi.Config{
		ClientID:      p.ClientID,
		ClientSecret:  p.ClientSecret,
		Issuer:        p.Issuer,
		TokenURL:      p.TokenURL,
		RevocationURL: p.RevocationURL,
		Scopes:        p.Scopes,
	}
}

// GetCredentials returns the credentials used to sign in when no session can be restored.
func (p Provider) GetCredentials() session.Credentials {
	return session.Credentials{
		Email:    p.Email,
		Phone:    p.Phone,
		Password: p.Password,
	}
}
