// Package memory is an in-process storage backend. Several handles opened on one Backend
// behave like browser tabs sharing local storage: a write through one handle is visible to
// all of them and is signalled to every other handle's watchers.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-client/storage"
)

var (
	_ storage.Store      = (*Store)(nil)
	_ storage.SyncGetter = (*Store)(nil)
	_ storage.Watcher    = (*Store)(nil)
)

type watcher struct {
	origin string
	key    string
	fn     func(storage.Change)
}

// Backend holds the shared values.
type Backend struct {
	values   map[string]string
	watchers map[string]watcher
	lock     sync.RWMutex
}

// NewBackend creates an empty backend.
func NewBackend() *Backend {
	return &Backend{
		values:   make(map[string]string),
		watchers: make(map[string]watcher),
	}
}

// Open returns a new handle on the backend.
func (b *Backend) Open() *Store {
	return &Store{backend: b, origin: uuid.New().String()}
}

// Store is one handle on a Backend.
type Store struct {
	backend *Backend
	origin  string
}

// New returns a handle on a fresh, private backend.
func New() *Store {
	return NewBackend().Open()
}

func (s *Store) Get(_ context.Context, key string) (string, error) {
	return s.GetSync(key)
}

func (s *Store) GetSync(key string) (string, error) {
	s.backend.lock.RLock()
	defer s.backend.lock.RUnlock()

	v, ok := s.backend.values[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return v, nil
}

func (s *Store) Set(_ context.Context, key, value string) error {
	s.backend.lock.Lock()
	s.backend.values[key] = value
	s.backend.lock.Unlock()

	s.backend.publish(s.origin, storage.Change{Key: key, NewValue: value})
	return nil
}

func (s *Store) Remove(_ context.Context, key string) error {
	s.backend.lock.Lock()
	_, existed := s.backend.values[key]
	delete(s.backend.values, key)
	s.backend.lock.Unlock()

	if existed {
		s.backend.publish(s.origin, storage.Change{Key: key, Deleted: true})
	}
	return nil
}

func (s *Store) Watch(key string, fn func(storage.Change)) (func(), error) {
	id := uuid.New().String()

	s.backend.lock.Lock()
	s.backend.watchers[id] = watcher{origin: s.origin, key: key, fn: fn}
	s.backend.lock.Unlock()

	return func() {
		s.backend.lock.Lock()
		defer s.backend.lock.Unlock()
		delete(s.backend.watchers, id)
	}, nil
}

// publish delivers c synchronously to the watchers of other handles. Callbacks run without
// the backend lock held so they may read the store.
func (b *Backend) publish(origin string, c storage.Change) {
	b.lock.RLock()
	targets := make([]func(storage.Change), 0, len(b.watchers))
	for _, w := range b.watchers {
		if w.origin != origin && w.key == c.Key {
			targets = append(targets, w.fn)
		}
	}
	b.lock.RUnlock()

	for _, fn := range targets {
		fn(c)
	}
}
