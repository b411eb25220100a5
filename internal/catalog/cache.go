// Package catalog fronts the item table with a Redis read-through cache.
// Redis is optional: any cache error falls through to the backing store.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dkeye/barflow/internal/core"
	"github.com/dkeye/barflow/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const keyPrefix = "barflow:item:"

type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// NewClient builds a client and pings it. It returns nil when the server is
// unreachable so callers can run without a cache.
func NewClient(ctx context.Context, opts Options) *redis.Client {
	if opts.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		log.Warn().Err(err).Str("module", "catalog").Str("addr", opts.Addr).Msg("redis unreachable, cache disabled")
		_ = client.Close()
		return nil
	}
	log.Info().Str("module", "catalog").Str("addr", opts.Addr).Msg("redis connected")
	return client
}

type Cache struct {
	rdb  *redis.Client
	next core.Catalog
	ttl  time.Duration
}

var _ core.Catalog = (*Cache)(nil)

func NewCache(rdb *redis.Client, next core.Catalog, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{rdb: rdb, next: next, ttl: ttl}
}

func (c *Cache) LookupItem(ctx context.Context, name string) (domain.Item, error) {
	key := keyPrefix + name
	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var item domain.Item
		jerr := json.Unmarshal(raw, &item)
		if jerr == nil {
			return item, nil
		}
		log.Warn().Err(jerr).Str("module", "catalog").Str("item", name).Msg("bad cache entry")
	case errors.Is(err, redis.Nil):
	default:
		log.Warn().Err(err).Str("module", "catalog").Str("item", name).Msg("cache get failed")
	}

	item, err := c.next.LookupItem(ctx, name)
	if err != nil {
		return domain.Item{}, err
	}
	if raw, err := json.Marshal(item); err == nil {
		if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			log.Warn().Err(err).Str("module", "catalog").Str("item", name).Msg("cache set failed")
		}
	}
	return item, nil
}

// Invalidate drops a cached entry after the item changed.
func (c *Cache) Invalidate(ctx context.Context, name string) {
	if err := c.rdb.Del(ctx, keyPrefix+name).Err(); err != nil {
		log.Warn().Err(err).Str("module", "catalog").Str("item", name).Msg("cache invalidate failed")
	}
}
