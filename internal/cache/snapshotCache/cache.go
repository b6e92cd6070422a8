package snapshotCache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Cache keeps a copy of the latest saved bytes per (document, version) pair.
// Keys carry the version, so a stale entry can never be served for a newer
// version: the key simply changes when the version bumps.
type Cache struct {
	Client *redis.Client
	TTL    time.Duration
}

func New(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{Client: client, TTL: ttl}
}

func (c *Cache) buildKey(id uuid.UUID, version int) string {
	return fmt.Sprintf("doc:%s:v%d", id, version)
}

func (c *Cache) Store(ctx context.Context, id uuid.UUID, version int, data []byte) error {
	return c.Client.Set(ctx, c.buildKey(id, version), data, c.TTL).Err()
}

func (c *Cache) Load(ctx context.Context, id uuid.UUID, version int) ([]byte, bool, error) {
	data, err := c.Client.Get(ctx, c.buildKey(id, version)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (c *Cache) Invalidate(ctx context.Context, id uuid.UUID, version int) error {
	return c.Client.Del(ctx, c.buildKey(id, version)).Err()
}
