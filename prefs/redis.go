package prefs

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	skerrors "github.com/AltairaLabs/SightKit/errors"
)

const component = "prefs"

// RedisStore keeps preferences in Redis so several devices of one user share
// them.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	user   string
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithTTL expires stored preferences after ttl. Zero, the default, keeps
// them forever.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix. Default is "sightkit".
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// WithUser scopes keys to one user. Default is "default".
func WithUser(user string) RedisOption {
	return func(s *RedisStore) {
		s.user = user
	}
}

// NewRedisStore creates a Redis-backed Store.
//
// Example:
//
//	store := NewRedisStore(
//	    redis.NewClient(&redis.Options{Addr: "localhost:6379"}),
//	    WithPrefix("myapp"),
//	)
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client: client,
		prefix: "sightkit",
		user:   "default",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(name string) string {
	return s.prefix + ":prefs:" + s.user + ":" + name
}

// Language implements Store. A stored value that is no longer supported
// reads as DefaultLanguage.
func (s *RedisStore) Language(ctx context.Context) (string, error) {
	val, err := s.client.Get(ctx, s.key(LanguageKey)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return DefaultLanguage, nil
		}
		return DefaultLanguage, skerrors.New(skerrors.KindStorage, component, "Language", err)
	}
	code, err := Normalize(val)
	if err != nil {
		return DefaultLanguage, nil
	}
	return code, nil
}

// SetLanguage implements Store.
func (s *RedisStore) SetLanguage(ctx context.Context, lang string) error {
	code, err := Normalize(lang)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(LanguageKey), code, s.ttl).Err(); err != nil {
		return skerrors.New(skerrors.KindStorage, component, "SetLanguage", err)
	}
	return nil
}
