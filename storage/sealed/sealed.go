// Package sealed wraps a storage.Store so that values are encrypted at rest with
// NaCl secretbox. Session records hold refresh tokens; a shared Redis or a file on disk should
// not hand them out in the clear.
package sealed

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/nacl/secretbox"

	"github.com/jrsteele09/go-auth-client/storage"
)

const nonceSize = 24

// ErrNotSupported is returned by GetSync or Watch when the wrapped store lacks the capability.
var ErrNotSupported = errors.New("sealed: wrapped store does not support this operation")

var (
	_ storage.Store      = (*Store)(nil)
	_ storage.SyncGetter = (*Store)(nil)
	_ storage.Watcher    = (*Store)(nil)
)

type Store struct {
	inner storage.Store
	key   [32]byte
}

// New returns a Store that seals values with key before handing them to inner.
func New(inner storage.Store, key [32]byte) *Store {
	return &Store{inner: inner, key: key}
}

// KeyFromBase64 decodes a standard base64 encoded 32 byte key.
func KeyFromBase64(s string) ([32]byte, error) {
	var key [32]byte
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return key, err
	}
	if len(b) != len(key) {
		return key, errors.New("sealed: key must be 32 bytes")
	}
	copy(key[:], b)
	return key, nil
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	raw, err := s.inner.Get(ctx, key)
	if err != nil {
		return "", err
	}
	return s.open(key, raw)
}

func (s *Store) GetSync(key string) (string, error) {
	sg, ok := s.inner.(storage.SyncGetter)
	if !ok {
		return "", ErrNotSupported
	}
	raw, err := sg.GetSync(key)
	if err != nil {
		return "", err
	}
	return s.open(key, raw)
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	sealed, err := s.seal(value)
	if err != nil {
		return err
	}
	return s.inner.Set(ctx, key, sealed)
}

func (s *Store) Remove(ctx context.Context, key string) error {
	return s.inner.Remove(ctx, key)
}

// Watch decrypts changes from the wrapped store. A value that cannot be opened is delivered
// as a deletion.
func (s *Store) Watch(key string, fn func(storage.Change)) (func(), error) {
	w, ok := s.inner.(storage.Watcher)
	if !ok {
		return nil, ErrNotSupported
	}
	return w.Watch(key, func(c storage.Change) {
		if c.Deleted {
			fn(c)
			return
		}
		plain, err := s.open(c.Key, c.NewValue)
		if err != nil {
			fn(storage.Change{Key: c.Key, Deleted: true})
			return
		}
		fn(storage.Change{Key: c.Key, NewValue: plain})
	})
}

func (s *Store) seal(value string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", err
	}
	box := secretbox.Seal(nonce[:], []byte(value), &nonce, &s.key)
	return base64.StdEncoding.EncodeToString(box), nil
}

// open treats anything it cannot decrypt as a missing value.
func (s *Store) open(key, raw string) (string, error) {
	box, err := base64.StdEncoding.DecodeString(raw)
	if err != nil || len(box) < nonceSize+secretbox.Overhead {
		log.Warn().Str("key", key).Msg("sealed: stored value is not a sealed box")
		return "", storage.ErrNotFound
	}
	var nonce [nonceSize]byte
	copy(nonce[:], box[:nonceSize])
	plain, ok := secretbox.Open(nil, box[nonceSize:], &nonce, &s.key)
	if !ok {
		log.Warn().Str("key", key).Msg("sealed: stored value failed authentication")
		return "", storage.ErrNotFound
	}
	return string(plain), nil
}
