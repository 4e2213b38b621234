package config

import (
	"time"

	"github.com/jrsteele09/go-auth-client/session"
)

type SessionConfig interface {
	GetSessionOptions() []session.Option
	GetRetryPolicy() session.RetryPolicy
}

type Session struct {
	StorageKey     string        `env:"SESSION_STORAGE_KEY" envDefault:"supabase.auth.token"`
	RefreshMargin  time.Duration `env:"SESSION_REFRESH_MARGIN" envDefault:"60s"`
	AutoRefresh    bool          `env:"SESSION_AUTO_REFRESH" envDefault:"true"`
	PersistSession bool          `env:"SESSION_PERSIST" envDefault:"true"`
	MultiTab       bool          `env:"SESSION_MULTI_TAB" envDefault:"true"`
	StorageTimeout time.Duration `env:"SESSION_STORAGE_TIMEOUT" envDefault:"5s"`
	RetryBase      float64       `env:"SESSION_RETRY_BASE" envDefault:"2"`
	RetryScale     time.Duration `env:"SESSION_RETRY_SCALE" envDefault:"100ms"`
	RetryMax       int           `env:"SESSION_RETRY_MAX" envDefault:"10"`
}

var _ SessionConfig = Session{}

func (s Session) GetRetryPolicy() session.RetryPolicy {
	return session.RetryPolicy{
		Base:       s.RetryBase,
		Scale:      s.RetryScale,
		MaxRetries: s.RetryMax,
	}
}

// GetSessionOptions translates the settings into session manager options.
func (s Session) GetSessionOptions() []session.Option {
	return []session.Option{
		session.WithStorageKey(s.StorageKey),
		session.WithRefreshMargin(s.RefreshMargin),
		session.WithAutoRefresh(s.AutoRefresh),
		session.WithPersistSession(s.PersistSession),
		session.WithMultiTab(s.MultiTab),
		session.WithStorageTimeout(s.StorageTimeout),
		session.WithRetryPolicy(s.GetRetryPolicy()),
	}
}
