package transient

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions configures the redis backend.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisStore keeps transients as JSON strings with a TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects lazily; the first command dials the server.
func NewRedisStore(opts RedisOptions) *RedisStore {
	prefix := strings.TrimSpace(opts.Prefix)
	if prefix == "" {
		prefix = "formcrm:transient:"
	}
	c := redis.NewClient(&redis.Options{
		Addr:     strings.TrimSpace(opts.Addr),
		Password: opts.Password,
		DB:       opts.DB,
	})
	return &RedisStore{client: c, prefix: prefix}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Transient, error) {
	v, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return New(id), nil
		}
		return nil, err
	}
	return decode(id, v)
}

func (s *RedisStore) Save(ctx context.Context, t *Transient, ttl time.Duration) error {
	if t == nil || t.ID == "" {
		return errors.New("transient: id is required")
	}
	data, err := t.encode()
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(t.ID), data, ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.key(id)).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
