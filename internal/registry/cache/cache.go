package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	platformredis "payguard/internal/platform/redis"
	"payguard/internal/registry/models"
	"payguard/pkg/platform/sentinel"
)

const keyPrefix = "payguard:staff:"

// Cache keeps recently looked-up staff identities in Redis so detection runs
// don't hammer the primary store. Entries expire after the configured TTL;
// mutation paths invalidate eagerly.
type Cache struct {
	client *platformredis.Client
	ttl    time.Duration
}

// New builds a cache with the given TTL. A nil client yields a nil cache,
// which callers treat as "cache disabled".
func New(client *platformredis.Client, ttl time.Duration) *Cache {
	if client == nil {
		return nil
	}
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) Find(ctx context.Context, identityHash string) (*models.StaffIdentity, error) {
	raw, err := c.client.Get(ctx, keyPrefix+identityHash).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("cache miss %s: %w", identityHash, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("cache find: %w", err)
	}
	var identity models.StaffIdentity
	if err := json.Unmarshal(raw, &identity); err != nil {
		return nil, fmt.Errorf("cache decode: %w", err)
	}
	return &identity, nil
}

// FindMany resolves a batch of hashes in a single MGET. Misses are simply
// omitted; the second return value lists the hashes that still need a store
// lookup.
func (c *Cache) FindMany(ctx context.Context, hashes []string) ([]*models.StaffIdentity, []string, error) {
	if len(hashes) == 0 {
		return nil, nil, nil
	}
	keys := make([]string, len(hashes))
	for i, h := range hashes {
		keys[i] = keyPrefix + h
	}
	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("cache find many: %w", err)
	}
	var hits []*models.StaffIdentity
	var misses []string
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			misses = append(misses, hashes[i])
			continue
		}
		var identity models.StaffIdentity
		if err := json.Unmarshal([]byte(raw), &identity); err != nil {
			misses = append(misses, hashes[i])
			continue
		}
		hits = append(hits, &identity)
	}
	return hits, misses, nil
}

func (c *Cache) Save(ctx context.Context, identity *models.StaffIdentity) error {
	raw, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := c.client.Set(ctx, keyPrefix+identity.IdentityHash, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache save: %w", err)
	}
	return nil
}

func (c *Cache) Invalidate(ctx context.Context, identityHash string) error {
	if err := c.client.Del(ctx, keyPrefix+identityHash).Err(); err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}
