package session

import (
	"encoding/json"
	"errors"
)

// saveSession makes s current and arms the refresh timer for it. When persist is set and s
// has an expiry, the record is also written to the store. Write failures are logged only.
func (m *Manager) saveSession(s *Session, persist bool) {
	m.saveSessionAt(s, persist, m.sessionEpoch())
}

// saveSessionAt is saveSession for a session obtained while epoch was current. It does
// nothing and returns false when the session was removed in the meantime.
func (m *Manager) saveSessionAt(s *Session, persist bool, epoch uint64) bool {
	s = s.Clone()

	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		return false
	}
	m.current = s
	m.retries = 0
	m.stopTimerLocked()
	if s.ExpiresAt > 0 {
		expiresIn := s.Expiry().Sub(m.nowFunc())
		margin := m.refreshMargin
		if expiresIn <= margin {
			margin = minRefreshMargin
		}
		m.armTimerLocked(expiresIn-margin, m.refreshInBackground)
	}
	m.mu.Unlock()

	if persist && m.persistSession && s.ExpiresAt > 0 {
		m.writeRecord(s, epoch)
	}
	return true
}

// sessionEpoch identifies the current session lifetime. It moves on every removal.
func (m *Manager) sessionEpoch() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch
}

func (m *Manager) writeRecord(s *Session, epoch uint64) {
	payload, err := encodeRecord(s)
	if err != nil {
		m.logger.Warn().Err(err).Msg("unable to encode session record")
		return
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if m.sessionEpoch() != epoch {
		return
	}

	ctx, cancel := m.storageContext()
	defer cancel()
	if err := m.store.Set(ctx, m.storageKey, payload); err != nil {
		m.logger.Warn().Err(errors.Join(ErrStorage, err)).Str("key", m.storageKey).Msg("unable to persist session")
	}
}

// removeSession clears the current session and its timer and, when deleteRecord is set,
// the stored record. It reports whether a session was current.
func (m *Manager) removeSession(deleteRecord bool) bool {
	m.mu.Lock()
	had := m.current != nil
	m.current = nil
	m.epoch++
	m.stopTimerLocked()
	m.mu.Unlock()

	if deleteRecord && m.store != nil {
		m.writeMu.Lock()
		defer m.writeMu.Unlock()
		ctx, cancel := m.storageContext()
		defer cancel()
		if err := m.store.Remove(ctx, m.storageKey); err != nil {
			m.logger.Warn().Err(errors.Join(ErrStorage, err)).Str("key", m.storageKey).Msg("unable to remove stored session")
		}
	}
	return had
}

// expire drops a session that can no longer be refreshed.
func (m *Manager) expire() {
	if m.removeSession(true) {
		m.notify(EventSignedOut)
	}
}

func encodeRecord(s *Session) (string, error) {
	b, err := json.Marshal(persistedRecord{CurrentSession: s, ExpiresAt: s.ExpiresAt})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeRecord(raw string) (*persistedRecord, error) {
	var rec persistedRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// freshUntil reports whether a record expiring at expiresAt outlives the refresh margin.
func (m *Manager) freshUntil(expiresAt int64) bool {
	return expiresAt >= m.nowFunc().Add(m.refreshMargin).Unix()
}
