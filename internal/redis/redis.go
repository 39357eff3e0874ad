package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"switchfleet/internal/models"
)

// NewRedisClient creates a Redis client
func NewRedisClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr})
}

const sampleTTL = time.Hour

// SampleCache keeps the latest telemetry sample per device in Redis so
// reconciliation checks and device listings skip the history table.
type SampleCache struct {
	rdb *redis.Client
}

// NewSampleCache creates a cache over rdb
func NewSampleCache(rdb *redis.Client) *SampleCache {
	return &SampleCache{rdb: rdb}
}

func sampleKey(deviceID string) string {
	return fmt.Sprintf("device:%s:state", deviceID)
}

// SetLatestSample stores the sample; failures are ignored, the database
// remains authoritative
func (c *SampleCache) SetLatestSample(ctx context.Context, sample *models.StateSample) {
	raw, err := json.Marshal(sample)
	if err != nil {
		return
	}
	c.rdb.Set(ctx, sampleKey(sample.DeviceID), raw, sampleTTL)
}

// GetLatestSample returns the cached sample if present
func (c *SampleCache) GetLatestSample(ctx context.Context, deviceID string) (*models.StateSample, bool) {
	raw, err := c.rdb.Get(ctx, sampleKey(deviceID)).Result()
	if err != nil {
		return nil, false
	}
	var sample models.StateSample
	if err := json.Unmarshal([]byte(raw), &sample); err != nil {
		return nil, false
	}
	return &sample, true
}

// Invalidate drops the cached sample, e.g. on device deletion
func (c *SampleCache) Invalidate(ctx context.Context, deviceID string) {
	c.rdb.Del(ctx, sampleKey(deviceID))
}
