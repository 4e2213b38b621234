// Package redisstore persists session records in Redis and uses Redis pub/sub to tell other
// processes sharing the same server about changes, the way browser tabs see storage events.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-auth-client/storage"
)

const (
	DefaultChannel     = "auth:storage:changes"
	DefaultSyncTimeout = 250 * time.Millisecond
)

var (
	_ storage.Store      = (*Store)(nil)
	_ storage.SyncGetter = (*Store)(nil)
	_ storage.Watcher    = (*Store)(nil)
)

// message is published on the change channel after every Set and Remove. Key is the full
// Redis key and DB its database, since channels are shared by every prefix and database.
type message struct {
	Origin  string `json:"origin"`
	DB      int    `json:"db"`
	Key     string `json:"key"`
	Value   string `json:"value,omitempty"`
	Deleted bool   `json:"deleted,omitempty"`
}

type Store struct {
	client      *redis.Client
	prefix      string
	channel     string
	origin      string
	syncTimeout time.Duration
}

type Option func(*Store)

// WithKeyPrefix sets the prefix prepended to every key.
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithChannel sets the pub/sub channel used for change messages.
func WithChannel(channel string) Option {
	return func(s *Store) {
		s.channel = channel
	}
}

// WithSyncTimeout bounds GetSync.
func WithSyncTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.syncTimeout = d
	}
}

// New returns a Store over client. Each Store has its own origin, so a Store never sees its
// own changes through Watch.
func New(client *redis.Client, opts ...Option) *Store {
	s := &Store{
		client:      client,
		channel:     DefaultChannel,
		origin:      uuid.New().String(),
		syncTimeout: DefaultSyncTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

func (s *Store) GetSync(key string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.syncTimeout)
	defer cancel()
	return s.Get(ctx, key)
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return err
	}
	return s.publish(ctx, message{Origin: s.origin, Key: s.prefix + key, Value: value})
}

func (s *Store) Remove(ctx context.Context, key string) error {
	n, err := s.client.Del(ctx, s.prefix+key).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	return s.publish(ctx, message{Origin: s.origin, Key: s.prefix + key, Deleted: true})
}

func (s *Store) publish(ctx context.Context, m message) error {
	m.DB = s.client.Options().DB
	payload, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, s.channel, payload).Err()
}

// Watch subscribes to the change channel. The subscription is confirmed before Watch returns;
// fn is then called from a dedicated goroutine.
func (s *Store) Watch(key string, fn func(storage.Change)) (func(), error) {
	ctx, cancel := context.WithCancel(context.Background())
	sub := s.client.Subscribe(ctx, s.channel)
	if _, err := sub.Receive(ctx); err != nil {
		cancel()
		_ = sub.Close()
		return nil, err
	}

	fullKey, db := s.prefix+key, s.client.Options().DB
	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range sub.Channel() {
			var m message
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				log.Debug().Err(err).Str("channel", msg.Channel).Msg("redisstore: dropping malformed change message")
				continue
			}
			if m.Origin == s.origin || m.Key != fullKey || m.DB != db {
				continue
			}
			fn(storage.Change{Key: key, NewValue: m.Value, Deleted: m.Deleted})
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			_ = sub.Close()
			<-done
		})
	}, nil
}
