package session

import (
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultStorageKey     = "supabase.auth.token"
	DefaultRefreshMargin  = 60 * time.Second
	DefaultStorageTimeout = 5 * time.Second

	// minRefreshMargin replaces the refresh margin for tokens that expire sooner than it.
	minRefreshMargin = 500 * time.Millisecond
)

// TimerFunc arms a one-shot timer calling f after d and returns its stop function.
// time.AfterFunc satisfies it once adapted.
type TimerFunc func(d time.Duration, f func()) (stop func() bool)

func afterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

type Option func(*Manager)

// WithAutoRefresh enables or disables the background refresh timer. Default true.
func WithAutoRefresh(enabled bool) Option {
	return func(m *Manager) {
		m.autoRefresh = enabled
	}
}

// WithPersistSession enables or disables writing the session to the store. Default true.
func WithPersistSession(enabled bool) Option {
	return func(m *Manager) {
		m.persistSession = enabled
	}
}

// WithMultiTab enables or disables following changes other processes make to the stored
// session. Default true. Only effective when the store implements storage.Watcher.
func WithMultiTab(enabled bool) Option {
	return func(m *Manager) {
		m.multiTab = enabled
	}
}

func WithStorageKey(key string) Option {
	return func(m *Manager) {
		m.storageKey = key
	}
}

// WithRefreshMargin sets how long before expiry the session is refreshed.
func WithRefreshMargin(margin time.Duration) Option {
	return func(m *Manager) {
		m.refreshMargin = margin
	}
}

func WithRetryPolicy(p RetryPolicy) Option {
	return func(m *Manager) {
		m.retry = p
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func WithTimerFunc(fn TimerFunc) Option {
	return func(m *Manager) {
		m.timerFunc = fn
	}
}

// WithStorageTimeout bounds each write and delete issued to the store.
func WithStorageTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.storageTimeout = d
	}
}
