package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"krishilink/api/internal/models"
)

// ICropCache caches single crops by id.
type ICropCache interface {
	Get(ctx context.Context, id primitive.ObjectID) (*models.Crop, error)
	Set(ctx context.Context, crop *models.Crop) error
	Invalidate(ctx context.Context, id primitive.ObjectID) error
}

// invalidationFence is how long Set refuses to fill a crop after it was
// invalidated. A read that started before the write and finishes inside the
// fence cannot put the old document back.
const invalidationFence = 10 * time.Second

// fillCrop stores the crop only when it is absent and not fenced.
var fillCrop = redis.NewScript(`
if redis.call("EXISTS", KEYS[2]) == 1 then
	return 0
end
if redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2], "NX") then
	return 1
end
return 0
`)

type cropCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCropCache returns a Redis-backed crop cache. A zero ttl disables caching
// by making every Set a no-op.
func NewCropCache(client *redis.Client, ttl time.Duration) ICropCache {
	return &cropCache{client: client, ttl: ttl}
}

func cropKey(id primitive.ObjectID) string {
	return "crop:" + id.Hex()
}

func fenceKey(id primitive.ObjectID) string {
	return "crop:" + id.Hex() + ":fence"
}

// Get returns nil, nil on a cache miss.
func (c *cropCache) Get(ctx context.Context, id primitive.ObjectID) (*models.Crop, error) {
	data, err := c.client.Get(ctx, cropKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read crop %s from cache: %w", id.Hex(), err)
	}
	var crop models.Crop
	if err := json.Unmarshal(data, &crop); err != nil {
		return nil, fmt.Errorf("failed to decode cached crop %s: %w", id.Hex(), err)
	}
	return &crop, nil
}

// Set fills the cache after a miss. It never overwrites a cached crop and
// skips crops invalidated within the last invalidationFence.
func (c *cropCache) Set(ctx context.Context, crop *models.Crop) error {
	if c.ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(crop)
	if err != nil {
		return fmt.Errorf("failed to encode crop %s: %w", crop.ID.Hex(), err)
	}
	keys := []string{cropKey(crop.ID), fenceKey(crop.ID)}
	if err := fillCrop.Run(ctx, c.client, keys, data, c.ttl.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("failed to cache crop %s: %w", crop.ID.Hex(), err)
	}
	return nil
}

// Invalidate drops the cached crop and fences it against late fills.
func (c *cropCache) Invalidate(ctx context.Context, id primitive.ObjectID) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, cropKey(id))
		pipe.Set(ctx, fenceKey(id), 1, invalidationFence)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to invalidate crop %s: %w", id.Hex(), err)
	}
	return nil
}
