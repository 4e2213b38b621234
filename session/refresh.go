package session

import (
	"context"
	"errors"
)

// callRefreshToken exchanges refreshToken, or the current session's refresh token when it is
// empty, for a new session and makes that session current. Concurrent calls for the same
// token share one exchange and only the caller that performed it emits events. A result that
// arrives after the session was removed is dropped.
func (m *Manager) callRefreshToken(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		m.mu.Lock()
		if m.current != nil {
			refreshToken = m.current.RefreshToken
		}
		m.mu.Unlock()
	}
	if refreshToken == "" {
		return nil, ErrNoSession
	}

	leader := false
	v, err, _ := m.flight.Do(refreshToken, func() (any, error) {
		leader = true
		epoch := m.sessionEpoch()
		s, err := m.api.RefreshAccessToken(ctx, refreshToken)
		if err != nil {
			return nil, err
		}
		if s == nil || s.AccessToken == "" {
			return nil, ErrInvalidSession
		}
		if !m.saveSessionAt(s, true, epoch) {
			return nil, errSessionRemoved
		}
		return s, nil
	})
	if err != nil {
		return nil, err
	}

	if leader {
		m.notify(EventTokenRefreshed)
		m.notify(EventSignedIn)
	}
	return v.(*Session).Clone(), nil
}

// retryable reports whether a background refresh that failed with err is repeated. A shared
// exchange can fail with another caller's context error, so those count too.
func retryable(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// refreshInBackground runs when the refresh timer fires.
func (m *Manager) refreshInBackground() {
	_, err := m.callRefreshToken(m.ctx, "")
	m.handleBackgroundResult(err, m.refreshInBackground, false)
}

// recoverInBackground retries a failed recovery refresh.
func (m *Manager) recoverInBackground() {
	err := m.RecoverAndRefresh(m.ctx)
	if err != nil && !errors.Is(err, ErrNetwork) {
		m.logger.Warn().Err(err).Msg("session recovery retry failed")
	}
}

// handleBackgroundResult applies the retry policy to the outcome of a refresh nobody is
// waiting on. Transient failures re-arm retry with backoff until the policy gives up, then
// the session is cleared. A rejected refresh token clears the session at once. Other
// failures leave the session to lapse unless clearOnFailure is set.
func (m *Manager) handleBackgroundResult(err error, retry func(), clearOnFailure bool) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}

	switch {
	case err == nil:
		m.retries = 0
		m.mu.Unlock()

	case errors.Is(err, ErrNoSession):
		m.mu.Unlock()

	case retryable(err) && m.retries < m.retry.MaxRetries:
		m.retries++
		delay := m.retry.Delay(m.retries)
		m.armTimerLocked(delay, retry)
		retries := m.retries
		m.mu.Unlock()
		m.logger.Debug().Err(err).Int("retry", retries).Dur("delay", delay).Msg("session refresh failed, retrying")

	case retryable(err):
		m.retries = 0
		m.mu.Unlock()
		m.logger.Warn().Err(err).Msg("session refresh retries exhausted, signing out")
		m.expire()

	case errors.Is(err, ErrInvalidGrant) || clearOnFailure:
		m.retries = 0
		m.mu.Unlock()
		m.logger.Warn().Err(err).Msg("session refresh rejected, signing out")
		m.expire()

	default:
		m.retries = 0
		m.mu.Unlock()
		m.logger.Warn().Err(err).Msg("session refresh failed, session will lapse")
	}
}
