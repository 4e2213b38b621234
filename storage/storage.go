// Package storage defines the persistence contract the session manager writes its record to.
//
// A Store is a small key/value capability modelled on browser local storage. Backends that
// can answer without network I/O implement SyncGetter so a session can be restored before a
// constructor returns; backends shared between processes implement Watcher so one process
// learns about writes made by another.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get and GetSync when the key holds no value.
var ErrNotFound = errors.New("storage: key not found")

// Store persists raw string values under string keys.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value stored under key or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
}

// SyncGetter is implemented by stores that can read a value without suspending on remote I/O
// (or with a short, bounded wait).
type SyncGetter interface {
	GetSync(key string) (string, error)
}

// Change describes a mutation of a key made through another handle or process.
type Change struct {
	Key      string
	NewValue string
	Deleted  bool
}

// Watcher is implemented by stores that can signal out-of-process mutations.
type Watcher interface {
	// Watch calls fn for every change to key made by another handle. Changes made through
	// the watching handle itself are never delivered. The returned function cancels the
	// subscription; it is safe to call more than once.
	Watch(key string, fn func(Change)) (cancel func(), err error)
}
