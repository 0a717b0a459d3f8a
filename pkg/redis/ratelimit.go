package redis

import (
	"context"
	"time"
)

// FixedWindowAllow counts one hit against scope and reports whether the
// window still has room. The window starts at the first hit.
func (c *Client) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	cmd, err := c.conn()
	if err != nil {
		return false, 0, err
	}
	key := c.RateLimitKey(scope)
	count, err := cmd.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if window > 0 {
		if err := ensureExpiry(ctx, cmd, key, count, window); err != nil {
			return false, count, err
		}
	}
	return count <= limit, count, nil
}

// ensureExpiry sets the window on the first hit. Later hits repair a counter
// left without a TTL by a process that died between INCR and EXPIRE.
func ensureExpiry(ctx context.Context, cmd commands, key string, count int64, window time.Duration) error {
	if count == 1 {
		return cmd.Expire(ctx, key, window).Err()
	}
	ttl, err := cmd.TTL(ctx, key).Result()
	if err != nil {
		return err
	}
	if ttl == -1 {
		return cmd.Expire(ctx, key, window).Err()
	}
	return nil
}
