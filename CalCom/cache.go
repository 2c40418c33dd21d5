package CalCom

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

const DefaultCacheTTL = 60 * time.Second

// SlotCache is the injectable availability cache. Staleness is acceptable:
// entries live for the TTL and a miss simply refetches.
type SlotCache interface {
	Get(key string) ([]Slot, bool)
	Set(key string, slots []Slot, ttl time.Duration)
}

func CacheKey(therapistID uint, kind, start, end string) string {
	return fmt.Sprintf("slots:%d:%s:%s:%s", therapistID, kind, start, end)
}

// MemoryCache is the default single-instance cache, bounded so a scan of many
// therapists cannot grow it without limit.
type MemoryCache struct {
	mu         sync.Mutex
	entries    map[string]memoryEntry
	maxEntries int
}

type memoryEntry struct {
	slots   []Slot
	expires time.Time
}

func NewMemoryCache(maxEntries int) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = 512
	}
	return &MemoryCache{entries: make(map[string]memoryEntry), maxEntries: maxEntries}
}

func (c *MemoryCache) Get(key string) ([]Slot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok || time.Now().After(entry.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return entry.slots, true
}

func (c *MemoryCache) Set(key string, slots []Slot, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= c.maxEntries {
		c.evictLocked()
	}
	c.entries[key] = memoryEntry{slots: slots, expires: time.Now().Add(ttl)}
}

func (c *MemoryCache) evictLocked() {
	now := time.Now()
	for key, entry := range c.entries {
		if now.After(entry.expires) {
			delete(c.entries, key)
		}
	}
	// Still full of live entries: drop an arbitrary one.
	if len(c.entries) >= c.maxEntries {
		for key := range c.entries {
			delete(c.entries, key)
			break
		}
	}
}

// RedisCache shares availability across instances.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(key string) ([]Slot, bool) {
	data, err := c.client.Get(context.Background(), key).Bytes()
	if err != nil {
		return nil, false
	}
	var slots []Slot
	if err := json.Unmarshal(data, &slots); err != nil {
		return nil, false
	}
	return slots, true
}

func (c *RedisCache) Set(key string, slots []Slot, ttl time.Duration) {
	data, err := json.Marshal(slots)
	if err != nil {
		return
	}
	c.client.Set(context.Background(), key, data, ttl)
}

// NewSlotCacheFromEnv picks redis when SLOTS_CACHE=redis, otherwise memory.
func NewSlotCacheFromEnv() SlotCache {
	if os.Getenv("SLOTS_CACHE") == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
		})
		return NewRedisCache(client)
	}
	return NewMemoryCache(0)
}
