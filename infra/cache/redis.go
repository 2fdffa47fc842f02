// Package cache keeps computed schedules in Redis keyed by their task set.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"

	"github.com/kilianp07/yds/core/model"
)

// ErrMiss is returned when no schedule is cached for a task set.
var ErrMiss = errors.New("schedule not cached")

// Config locates the Redis server. An empty address disables the cache.
type Config struct {
	Addr       string `json:"addr"`
	Password   string `json:"password"`
	DB         int    `json:"db"`
	Prefix     string `json:"prefix"`
	TTLSeconds int    `json:"ttl_seconds"`
}

// Enabled reports whether schedules are cached.
func (c Config) Enabled() bool { return c.Addr != "" }

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Prefix == "" {
		c.Prefix = "yds:schedule:"
	}
	if c.TTLSeconds <= 0 {
		c.TTLSeconds = 3600
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.DB < 0 {
		return fmt.Errorf("redis db %d must not be negative", c.DB)
	}
	return nil
}

// Entry is a cached schedule.
type Entry struct {
	Executions []model.Execution `json:"executions"`
	Rounds     int               `json:"rounds"`
	CachedAt   time.Time         `json:"cached_at"`
}

// RedisCache stores schedules as JSON strings with a TTL.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache connects to the configured server with tracing enabled.
func NewRedisCache(ctx context.Context, cfg Config) (*RedisCache, error) {
	cfg.SetDefaults()
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := redisotel.InstrumentTracing(client); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("instrument redis tracing: %w", err)
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Addr, err)
	}
	return NewRedisCacheFromClient(client, cfg), nil
}

// NewRedisCacheFromClient wraps an existing client. The cache takes ownership
// of the client.
func NewRedisCacheFromClient(client *redis.Client, cfg Config) *RedisCache {
	cfg.SetDefaults()
	return &RedisCache{
		client: client,
		prefix: cfg.Prefix,
		ttl:    time.Duration(cfg.TTLSeconds) * time.Second,
	}
}

// Get returns the schedule cached for tasks or ErrMiss.
func (c *RedisCache) Get(ctx context.Context, tasks []model.Task) (Entry, error) {
	data, err := c.client.Get(ctx, c.prefix+Key(tasks)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Entry{}, ErrMiss
		}
		return Entry{}, err
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, fmt.Errorf("decode cached schedule: %w", err)
	}
	return e, nil
}

// Put caches the schedule computed for tasks.
func (c *RedisCache) Put(ctx context.Context, tasks []model.Task, e Entry) error {
	if e.CachedAt.IsZero() {
		e.CachedAt = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.prefix+Key(tasks), data, c.ttl).Err()
}

// Close closes the underlying client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Key fingerprints a task set. Order matters since it decides ties.
func Key(tasks []model.Task) string {
	h := sha256.New()
	var buf [8]byte
	for _, t := range tasks {
		binary.BigEndian.PutUint64(buf[:], uint64(len(t.ID)))
		h.Write(buf[:])
		h.Write([]byte(t.ID))
		for _, f := range []float64{t.Release, t.Deadline, t.Workload} {
			binary.BigEndian.PutUint64(buf[:], math.Float64bits(f))
			h.Write(buf[:])
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
