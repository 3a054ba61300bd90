package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/neexbeast/weatherly/internal/geolocation"
)

const defaultKey = "weatherly:position"

// PositionCache keeps the last located position in Redis. Entries expire
// after ttl, which should match the locator's maximum age.
type PositionCache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewPositionCache constructs a PositionCache for the given host id.
// An empty host uses the shared default key.
func NewPositionCache(client *redis.Client, host string, ttl time.Duration) *PositionCache {
	return &PositionCache{client: client, key: key(host), ttl: ttl}
}

// key returns the Redis key for the given host id.
func key(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return defaultKey
	}
	return defaultKey + ":" + host
}

// Get retrieves the cached position.
// Returns nil, nil on a cache miss (not an error).
func (c *PositionCache) Get(ctx context.Context) (*geolocation.Position, error) {
	val, err := c.client.Get(ctx, c.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("cache get for %s: %w", c.key, err)
	}

	var pos geolocation.Position
	if err := json.Unmarshal([]byte(val), &pos); err != nil {
		return nil, fmt.Errorf("unmarshaling cached position for %s: %w", c.key, err)
	}

	return &pos, nil
}

// Set stores pos with the configured TTL.
func (c *PositionCache) Set(ctx context.Context, pos geolocation.Position) error {
	b, err := json.Marshal(pos)
	if err != nil {
		return fmt.Errorf("marshaling position for %s: %w", c.key, err)
	}

	if err := c.client.Set(ctx, c.key, b, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set for %s: %w", c.key, err)
	}

	return nil
}

var _ geolocation.PositionCache = (*PositionCache)(nil)
