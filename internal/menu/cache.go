package menu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	cacheVersionKey = "menu:version"
	cacheEntriesKey = "menu:entries"
)

// Cache keeps the flat, ordered entry list in Redis. Keys carry a version so a
// bump invalidates every replica at once without a scan.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Version returns the current cache version, initialising when missing.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, cacheVersionKey).Int64()
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

func entriesKey(ver int64) string {
	return fmt.Sprintf("%s:%d", cacheEntriesKey, ver)
}

// Entries returns the cached list together with the version it was looked up
// under, or ok=false on a miss. Callers store a fresh load under that version
// so a bump racing the load is never masked.
func (c *Cache) Entries(ctx context.Context) ([]Entry, int64, bool, error) {
	if c == nil || c.client == nil {
		return nil, 0, false, nil
	}
	ver, err := c.Version(ctx)
	if err != nil {
		return nil, 0, false, err
	}
	payload, err := c.client.Get(ctx, entriesKey(ver)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ver, false, nil
	}
	if err != nil {
		return nil, 0, false, err
	}
	var entries []Entry
	if err := json.Unmarshal(payload, &entries); err != nil {
		return nil, 0, false, err
	}
	return entries, ver, true, nil
}

// Store saves the list under ver.
func (c *Cache) Store(ctx context.Context, ver int64, entries []Entry) error {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, entriesKey(ver), raw, c.ttl).Err()
}

// Bump invalidates cached entries by advancing the version.
func (c *Cache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, cacheVersionKey).Err()
}
