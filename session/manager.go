// Package session keeps a client's bearer-token session alive.
//
// A Manager holds the current Session, persists it to a storage.Store, refreshes it before it
// expires, follows changes other processes make to the stored copy, and tells subscribers
// about every transition. It works with any API that can exchange a refresh token.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/jrsteele09/go-auth-client/storage"
)

type Manager struct {
	api   API
	store storage.Store

	autoRefresh    bool
	persistSession bool
	multiTab       bool
	storageKey     string
	refreshMargin  time.Duration
	retry          RetryPolicy
	logger         zerolog.Logger
	nowFunc        func() time.Time
	timerFunc      TimerFunc
	storageTimeout time.Duration

	mu        sync.Mutex
	current   *Session
	epoch     uint64
	retries   int
	timerStop func() bool
	timerGen  uint64
	closed    bool
	unwatch   func()

	// writeMu orders record writes against removals.
	writeMu sync.Mutex

	listeners listeners
	flight    singleflight.Group

	ctx         context.Context
	cancel      context.CancelFunc
	initialized chan struct{}
}

// NewManager builds a Manager and restores any session found in store.
//
// A stored session that is valid for longer than the refresh margin is adopted before
// NewManager returns when store implements storage.SyncGetter. A second recovery pass then
// runs in the background and refreshes a stored session close to expiry. Initialized reports
// when that pass is done.
//
// store may be nil only when persistence is disabled.
func NewManager(api API, store storage.Store, opts ...Option) (*Manager, error) {
	if api == nil {
		return nil, fmt.Errorf("%w: an auth API is required", ErrConfiguration)
	}

	m := &Manager{
		api:            api,
		store:          store,
		autoRefresh:    true,
		persistSession: true,
		multiTab:       true,
		storageKey:     DefaultStorageKey,
		refreshMargin:  DefaultRefreshMargin,
		retry:          DefaultRetryPolicy(),
		logger:         log.With().Str("component", "session").Logger(),
		nowFunc:        time.Now,
		timerFunc:      afterFunc,
		storageTimeout: DefaultStorageTimeout,
		initialized:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.persistSession && m.store == nil {
		return nil, fmt.Errorf("%w: session persistence needs a store", ErrConfiguration)
	}
	if m.storageKey == "" {
		return nil, fmt.Errorf("%w: empty storage key", ErrConfiguration)
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())

	m.recoverSession()

	if w, ok := m.store.(storage.Watcher); ok && m.multiTab {
		unwatch, err := w.Watch(m.storageKey, m.handleExternalChange)
		if err != nil {
			m.logger.Warn().Err(err).Msg("unable to watch storage for session changes")
		} else {
			m.unwatch = unwatch
		}
	}

	go func() {
		defer close(m.initialized)
		if err := m.RecoverAndRefresh(m.ctx); err != nil {
			m.logger.Warn().Err(err).Msg("session recovery failed")
		}
	}()

	return m, nil
}

// Initialized is closed once the background recovery started by NewManager has finished.
func (m *Manager) Initialized() <-chan struct{} {
	return m.initialized
}

// Session returns a copy of the current session, or nil.
func (m *Manager) Session() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current.Clone()
}

// User returns a copy of the current session's user, or nil.
func (m *Manager) User() *User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	return m.current.User.Clone()
}

// AccessToken returns the current access token, or "" when signed out.
func (m *Manager) AccessToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return ""
	}
	return m.current.AccessToken
}

// OnAuthStateChange registers cb for every subsequent auth event.
func (m *Manager) OnAuthStateChange(cb Callback) *Subscription {
	return m.listeners.add(cb)
}

// Close stops the refresh timer and the storage subscription. The current session stays in
// the store. Close is idempotent.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.stopTimerLocked()
	unwatch := m.unwatch
	m.unwatch = nil
	m.mu.Unlock()

	m.cancel()
	if unwatch != nil {
		unwatch()
	}
	return nil
}

// notify delivers event to every subscriber. Each callback reads the session afresh, so a
// callback that changes the session is seen by the ones after it.
func (m *Manager) notify(event Event) {
	m.logger.Debug().Str("event", string(event)).Msg("auth state change")
	for _, cb := range m.listeners.snapshot() {
		cb(event, m.Session())
	}
}

// armTimerLocked replaces any pending timer. fn only runs if no other timer was armed or
// stopped in the meantime.
func (m *Manager) armTimerLocked(delay time.Duration, fn func()) {
	m.stopTimerLocked()
	if delay <= 0 || !m.autoRefresh || m.closed {
		return
	}

	gen := m.timerGen
	m.timerStop = m.timerFunc(delay, func() {
		m.mu.Lock()
		if m.timerGen != gen || m.closed {
			m.mu.Unlock()
			return
		}
		m.timerStop = nil
		m.mu.Unlock()

		fn()
	})
}

func (m *Manager) stopTimerLocked() {
	m.timerGen++
	if m.timerStop != nil {
		m.timerStop()
		m.timerStop = nil
	}
}

func (m *Manager) storageContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), m.storageTimeout)
}
