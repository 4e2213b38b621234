package config

import (
	"strings"

	"github.com/rs/zerolog"
)

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() zerolog.Level
	GetLogFormat() string
}

type EnvVars struct {
	AppName   string `env:"APP_NAME" envDefault:"Go Auth Client"`
	Env       string `env:"ENV" envDefault:"DEV"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"` // console or json
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetEnv() string {
	return e.Env
}

// GetLogLevel falls back to info for unknown levels.
func (e EnvVars) GetLogLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(e.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

func (e EnvVars) GetLogFormat() string {
	return strings.ToLower(e.LogFormat)
}
