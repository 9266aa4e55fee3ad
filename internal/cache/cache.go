// Package cache provides the time-bounded permission cache consulted by the
// authorization middleware. Entries carry their own creation timestamp so
// staleness is decided by this package, not by the backing store's expiry;
// Redis TTL is only set as a backstop against abandoned keys.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds how stale a cached permission map may be served.
const DefaultTTL = 60 * time.Second

// PermissionCache maps profile keys to decoded permission maps. A cached nil
// map is meaningful: it records that the profile is known to define no
// permissions, so the store is not re-queried on every request.
type PermissionCache struct {
	rdb *redis.Client
	ttl time.Duration
	now func() time.Time
}

// New constructs the cache. ttl <= 0 selects DefaultTTL.
func New(rdb *redis.Client, ttl time.Duration) *PermissionCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &PermissionCache{rdb: rdb, ttl: ttl, now: time.Now}
}

// ProfileKey builds the cache key for a profile id.
func ProfileKey(profileID int64) string {
	return fmt.Sprintf("profile_%d", profileID)
}

type envelope struct {
	TS    int64          `json:"ts"`
	Value map[string]int `json:"value"`
}

// Get returns the cached permission map. ok is false when the key is absent,
// the entry is corrupt, or the entry is older than the TTL; a stale entry is
// proactively removed. ok=true with a nil map means "known to have none".
func (c *PermissionCache) Get(ctx context.Context, key string) (map[string]int, bool) {
	raw, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		return nil, false
	}
	var entry envelope
	if err := json.Unmarshal([]byte(raw), &entry); err != nil || entry.TS == 0 {
		return nil, false
	}
	if c.now().Unix()-entry.TS > int64(c.ttl/time.Second) {
		_ = c.rdb.Del(ctx, key).Err()
		return nil, false
	}
	return entry.Value, true
}

// Set stores the permission map (nil included) stamped with the current time.
// Write failures are reported as false, never raised: a cache that cannot be
// written must not break the request path.
func (c *PermissionCache) Set(ctx context.Context, key string, value map[string]int) bool {
	data, err := json.Marshal(envelope{TS: c.now().Unix(), Value: value})
	if err != nil {
		return false
	}
	// Backstop expiry: staleness is enforced by the envelope timestamp.
	if err := c.rdb.Set(ctx, key, data, 2*c.ttl).Err(); err != nil {
		return false
	}
	return true
}

// Delete removes an entry. Idempotent: deleting a missing key is success.
func (c *PermissionCache) Delete(ctx context.Context, key string) bool {
	return c.rdb.Del(ctx, key).Err() == nil
}

// ClearProfile invalidates the entry for a profile id. Profile mutations must
// call this so permission changes are visible before the TTL elapses.
func (c *PermissionCache) ClearProfile(ctx context.Context, profileID int64) bool {
	return c.Delete(ctx, ProfileKey(profileID))
}
