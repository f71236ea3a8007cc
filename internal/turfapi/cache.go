package turfapi

import (
	"context"
	"encoding/json"
	"fmt"

	"turfbook/internal/models"
)

func slotsCacheKey(sport models.SportType, date string) string {
	return fmt.Sprintf("turfbook:slots:%s:%s", sport, date)
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.cacheTTL).Err()
}

// invalidateSlots drops every cached slot list of a sport. Bookings only carry the
// slot id, so the affected date is unknown here.
func (c *Client) invalidateSlots(ctx context.Context, sport models.SportType) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	iter := c.redis.Scan(ctx, 0, fmt.Sprintf("turfbook:slots:%s:*", sport), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn().Err(err).Str("sport", string(sport)).Msg("slot cache scan failed")
		return
	}
	if len(keys) > 0 {
		_ = c.redis.Del(ctx, keys...).Err()
	}
}
