// Package manifestcache caches validated manifests in Redis.
package manifestcache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/previewbox/internal/domain/manifest"
)

const keyPrefix = "previewbox:manifest:"

// Key returns the cache key for shareID.
func Key(shareID string) string {
	return keyPrefix + shareID
}

// Config represents Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Cache stores manifests by share id.
type Cache interface {
	// Get returns the cached manifest; ok is false on a miss.
	Get(ctx context.Context, shareID string) (m *manifest.Manifest, ok bool, err error)
	Set(ctx context.Context, shareID string, m *manifest.Manifest) error
	Close() error
}

// Redis is a Cache backed by a Redis server.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, cfg Config) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "failed to connect to redis at %s", cfg.Addr)
	}
	zlog.Info().Msgf("manifest cache: connected to redis: addr=%s db=%d ttl=%s", cfg.Addr, cfg.DB, cfg.TTL)

	return newRedis(client, cfg.TTL), nil
}

func newRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Redis{client: client, ttl: ttl}
}

// Get returns the cached manifest for shareID.
func (r *Redis) Get(ctx context.Context, shareID string) (*manifest.Manifest, bool, error) {
	data, err := r.client.Get(ctx, Key(shareID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "failed to read cached manifest %s", shareID)
	}

	m, err := manifest.Parse(data)
	if err != nil {
		return nil, false, errors.Wrapf(err, "failed to decode cached manifest %s", shareID)
	}
	return m, true, nil
}

// Set stores m under shareID for the configured TTL.
func (r *Redis) Set(ctx context.Context, shareID string, m *manifest.Manifest) error {
	data, err := json.Marshal(m)
	if err != nil {
		return errors.Wrap(err, "failed to encode manifest")
	}
	if err := r.client.Set(ctx, Key(shareID), data, r.ttl).Err(); err != nil {
		return errors.Wrapf(err, "failed to cache manifest %s", shareID)
	}
	return nil
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
