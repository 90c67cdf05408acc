package geocode

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedResolver memoizes successful lookups in Redis. Cache failures never
// fail a lookup; they just fall through to the wrapped resolver.
type CachedResolver struct {
	next   Resolver
	client *redis.Client
	ttl    time.Duration
}

func NewCachedResolver(next Resolver, client *redis.Client, ttl time.Duration) *CachedResolver {
	return &CachedResolver{next: next, client: client, ttl: ttl}
}

func cacheKey(query string) string {
	return "geocode:" + strings.ToLower(strings.TrimSpace(query))
}

func (c *CachedResolver) Resolve(ctx context.Context, query string) (Place, error) {
	key := cacheKey(query)
	if raw, err := c.client.Get(ctx, key).Result(); err == nil {
		var p Place
		if err := json.Unmarshal([]byte(raw), &p); err == nil {
			return p, nil
		}
	}
	p, err := c.next.Resolve(ctx, query)
	if err != nil {
		return Place{}, err
	}
	if b, err := json.Marshal(p); err == nil {
		_ = c.client.Set(ctx, key, b, c.ttl).Err()
	}
	return p, nil
}
