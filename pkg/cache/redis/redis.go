// Package redis implements cache.RemoteStore on a Redis server, letting
// multiple analyzer processes share one response cache.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/trama-ai/trama/pkg/cache"
)

// Store is a prefix-namespaced JSON store on a single Redis database.
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// StoreParams contains configuration options for creating a new Store.
type StoreParams struct {
	Addr     string
	Password string
	DB       int

	// Prefix namespaces keys; defaults to "trama:".
	Prefix string
	// TTL is the default entry lifetime; defaults to 24h. The remote level
	// is shared infrastructure, so unlike the in-process LRUs it does
	// expire entries.
	TTL time.Duration
}

// NewStore connects to Redis with the given parameters. The connection is
// lazy; use Ping to verify reachability.
func NewStore(params StoreParams) *Store {
	prefix := params.Prefix
	if prefix == "" {
		prefix = "trama:"
	}
	ttl := params.TTL
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &Store{
		client: redis.NewClient(&redis.Options{
			Addr:     params.Addr,
			Password: params.Password,
			DB:       params.DB,
		}),
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *Store) Get(ctx context.Context, key string, dest any) error {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return cache.ErrRemoteMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func (s *Store) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.ttl
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.prefix+key, data, ttl).Err()
}

// Ping verifies the server is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}
