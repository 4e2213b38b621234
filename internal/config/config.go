package config

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	// ErrParsingConfig is returned when environment variables cannot be parsed into the config.
	ErrParsingConfig = errors.New("failed to parse environment variables into config")
	// ErrInvalidConfig is returned when the parsed values are inconsistent.
	ErrInvalidConfig = errors.New("invalid configuration")
)

type Config interface {
	EnvConfig
	SessionConfig
	ProviderConfig
	StorageConfig
}

type mainConfig struct {
	EnvVars
	Session
	Provider
	Storage
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	// The .env file is optional.
	_ = godotenv.Load()

	var c mainConfig
	if err := env.Parse(&c); err != nil {
		return nil, errors.Join(ErrParsingConfig, err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c mainConfig) validate() error {
	switch c.Kind {
	case ProviderGoTrue:
		if c.AuthURL == "" || c.APIKey == "" {
			return fmt.Errorf("%w: AUTH_URL and AUTH_API_KEY are required for the gotrue provider", ErrInvalidConfig)
		}
	case ProviderOAuth2:
		if c.Issuer == "" && c.TokenURL == "" {
			return fmt.Errorf("%w: OAUTH2_ISSUER or OAUTH2_TOKEN_URL is required for the oauth2 provider", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, c.Kind)
	}

	switch c.Backend {
	case StorageMemory, StorageRedis:
	default:
		return fmt.Errorf("%w: unknown storage backend %q", ErrInvalidConfig, c.Backend)
	}
	if _, _, err := c.GetSealKey(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
