package session

import (
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Callback receives an event and the session current at the moment it is called.
// The session is a copy and may be nil.
type Callback func(event Event, s *Session)

// Subscription is returned by OnAuthStateChange.
type Subscription struct {
	ID          string
	unsubscribe func()
}

// Unsubscribe stops further deliveries. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s != nil && s.unsubscribe != nil {
		s.unsubscribe()
	}
}

type listener struct {
	id string
	cb Callback
}

// listeners keeps callbacks in subscription order.
type listeners struct {
	lock sync.RWMutex
	subs []listener
}

func (l *listeners) add(cb Callback) *Subscription {
	id := uuid.New().String()

	l.lock.Lock()
	l.subs = append(l.subs, listener{id: id, cb: cb})
	l.lock.Unlock()

	return &Subscription{ID: id, unsubscribe: func() { l.remove(id) }}
}

func (l *listeners) remove(id string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.subs = slices.DeleteFunc(l.subs, func(s listener) bool { return s.id == id })
}

func (l *listeners) snapshot() []Callback {
	l.lock.RLock()
	defer l.lock.RUnlock()

	cbs := make([]Callback, len(l.subs))
	for i, s := range l.subs {
		cbs[i] = s.cb
	}
	return cbs
}
