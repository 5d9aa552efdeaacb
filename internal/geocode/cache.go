package geocode

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const cachePrefix = "geocode:"

// CachedClient wraps a Client with a Redis TTL cache. Geocoded addresses are
// stable, so a long TTL is safe; cache failures fall through to the upstream.
type CachedClient struct {
	Next Client
	Rdb  *redis.Client
	TTL  time.Duration
}

func (c *CachedClient) ttl() time.Duration {
	if c.TTL == 0 {
		return 24 * time.Hour
	}
	return c.TTL
}

func (c *CachedClient) Lookup(ctx context.Context, address string) (*Address, error) {
	key := cachePrefix + address
	if b, err := c.Rdb.Get(ctx, key).Bytes(); err == nil {
		var cached Address
		if json.Unmarshal(b, &cached) == nil {
			return &cached, nil
		}
	}

	addr, err := c.Next.Lookup(ctx, address)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(addr); err == nil {
		if err := c.Rdb.Set(ctx, key, b, c.ttl()).Err(); err != nil {
			log.Warn().Err(err).Str("address", address).Msg("geocode cache write failed")
		}
	}
	return addr, nil
}
