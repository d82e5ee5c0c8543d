package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"growchat/internal/pkg/logx"
)

// DefaultCachePrefix namespaces history keys in a shared Redis.
const DefaultCachePrefix = "growchat:history:"

// Cache is a cache-aside layer for whole-room history queries. Search queries always go
// to the wrapped gateway. Redis failures degrade to an uncached query. Concurrent misses
// for the same room share one backend query.
type Cache struct {
	client *redis.Client
	next   Gateway
	ttl    time.Duration
	prefix string
	flight singleflight.Group
	logger zerolog.Logger
}

// NewCache wraps next with a Redis-backed cache whose entries live for ttl.
func NewCache(client *redis.Client, next Gateway, ttl time.Duration) *Cache {
	return &Cache{
		client: client,
		next:   next,
		ttl:    ttl,
		prefix: DefaultCachePrefix,
		logger: logx.Logger().With().Str("component", "history_cache").Logger(),
	}
}

// Query serves whole-room queries from Redis when possible and fills the cache on a miss.
func (c *Cache) Query(ctx context.Context, filter Filter) ([]Record, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	if filter.IsSearch() {
		return c.next.Query(ctx, filter)
	}

	key := c.key(filter.Room)

	if records, ok := c.lookup(ctx, key); ok {
		return records, nil
	}

	val, err, shared := c.flight.Do(key, func() (any, error) {
		records, err := c.next.Query(ctx, filter)
		if err != nil {
			return nil, err
		}

		c.store(ctx, key, records)
		return records, nil
	})
	if err != nil {
		return nil, err
	}

	if shared {
		c.logger.Debug().Str("room", filter.Room).Msg("History miss served by a concurrent query.")
	}

	records, _ := val.([]Record)
	return records, nil
}

// Invalidate drops the cached history of room.
func (c *Cache) Invalidate(ctx context.Context, room string) error {
	if err := c.client.Del(ctx, c.key(room)).Err(); err != nil {
		return fmt.Errorf("invalidate history cache for room %q: %w", room, err)
	}
	return nil
}

func (c *Cache) lookup(ctx context.Context, key string) ([]Record, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Str("key", key).Msg("History cache read failed, querying backend.")
		}
		return nil, false
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Discarding undecodable history cache entry.")
		return nil, false
	}

	return records, true
}

func (c *Cache) store(ctx context.Context, key string, records []Record) {
	data, err := json.Marshal(records)
	if err != nil {
		c.logger.Error().Err(err).Str("key", key).Msg("Failed to encode history for cache.")
		return
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("History cache write failed.")
	}
}

func (c *Cache) key(room string) string {
	return c.prefix + room
}

// InvalidatingLogger logs through next and then evicts the room's cached history,
// so the next room-history query sees the new message.
type InvalidatingLogger struct {
	next  Logger
	cache *Cache
}

// NewInvalidatingLogger pairs a message logger with the cache it must keep fresh.
func NewInvalidatingLogger(next Logger, cache *Cache) *InvalidatingLogger {
	return &InvalidatingLogger{next: next, cache: cache}
}

// LogMessage stores record and invalidates its room. A failed invalidation is logged only.
func (l *InvalidatingLogger) LogMessage(ctx context.Context, record Record) error {
	if err := l.next.LogMessage(ctx, record); err != nil {
		return err
	}

	if err := l.cache.Invalidate(ctx, record.Room); err != nil {
		l.cache.logger.Warn().Err(err).Str("room", record.Room).Msg("History cache invalidation failed.")
	}

	return nil
}
