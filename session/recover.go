package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/jrsteele09/go-auth-client/storage"
)

// recoverSession adopts a stored session without suspending. Only records that stay valid
// past the refresh margin and carry a user are taken; everything else is left to
// RecoverAndRefresh.
func (m *Manager) recoverSession() {
	sg, ok := m.store.(storage.SyncGetter)
	if !ok {
		return
	}

	raw, err := sg.GetSync(m.storageKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			m.logger.Debug().Err(err).Msg("synchronous session read failed")
		}
		return
	}

	rec, err := decodeRecord(raw)
	if err != nil {
		m.logger.Warn().Err(err).Str("key", m.storageKey).Msg("stored session is corrupt")
		return
	}
	if rec.CurrentSession == nil || rec.CurrentSession.User == nil || !m.freshUntil(rec.ExpiresAt) {
		return
	}

	m.saveSession(rec.CurrentSession, false)
	m.notify(EventSignedIn)
}

// RecoverAndRefresh reloads the stored session. A record close to expiry is refreshed when
// auto refresh is on and it has a refresh token, and dropped otherwise. A fresh record is
// adopted when no session is current yet.
//
// Failed refreshes follow the background retry policy, and the error is also returned.
// When ctx ends first nothing changes. A corrupt record is reported and left in place.
func (m *Manager) RecoverAndRefresh(ctx context.Context) error {
	if m.store == nil {
		return nil
	}

	raw, err := m.store.Get(ctx, m.storageKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return errors.Join(ErrStorage, err)
	}

	rec, err := decodeRecord(raw)
	if err != nil {
		return fmt.Errorf("%w: corrupt session record: %w", ErrStorage, err)
	}

	switch {
	case !m.freshUntil(rec.ExpiresAt):
		if m.autoRefresh && rec.CurrentSession != nil && rec.CurrentSession.RefreshToken != "" {
			_, err := m.callRefreshToken(ctx, rec.CurrentSession.RefreshToken)
			if err != nil && ctx.Err() != nil {
				// The caller gave up. The record stays for the next attempt.
				return err
			}
			m.handleBackgroundResult(err, m.recoverInBackground, true)
			return err
		}
		m.expire()

	case rec.CurrentSession == nil:
		m.logger.Warn().Str("key", m.storageKey).Msg("stored session is missing data")
		m.removeSession(true)

	default:
		m.mu.Lock()
		adopt := m.current == nil && !m.closed
		m.mu.Unlock()
		if adopt {
			m.saveSession(rec.CurrentSession, false)
			m.notify(EventSignedIn)
		}
	}
	return nil
}

// Resume re-runs recovery, for callers coming back from a suspended or backgrounded state.
func (m *Manager) Resume(ctx context.Context) error {
	return m.RecoverAndRefresh(ctx)
}

// handleExternalChange follows a write another process made to the stored session.
// It never writes back.
func (m *Manager) handleExternalChange(c storage.Change) {
	if c.Key != m.storageKey {
		return
	}
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return
	}

	var s *Session
	if !c.Deleted {
		if rec, err := decodeRecord(c.NewValue); err != nil {
			m.logger.Warn().Err(err).Msg("undecodable session change, treating it as a sign-out")
		} else {
			s = rec.CurrentSession
		}
	}

	if s == nil || s.AccessToken == "" {
		m.removeSession(false)
		m.notify(EventSignedOut)
		return
	}
	m.saveSession(s, false)
	m.notify(EventSignedIn)
}
