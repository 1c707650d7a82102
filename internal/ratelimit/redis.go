package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindowScript keeps one sorted-set member per admitted hit, scored by
// its timestamp in ms. Members older than the window are dropped first, so
// ZCARD is the count inside the window ending now.
//
// Returns {allowed, remaining, reset_ms}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
	redis.call('ZADD', key, now, member)
	count = count + 1
	allowed = 1
end
redis.call('PEXPIRE', key, window)

local reset = now + window
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if oldest[2] then
	reset = tonumber(oldest[2]) + window
end

return {allowed, limit - count, reset}
`)

// RedisBackend is a sliding-window log stored in Redis sorted sets
type RedisBackend struct {
	client redis.Scripter
	now    func() time.Time
}

// NewRedisBackend creates a RedisBackend on client
func NewRedisBackend(client redis.Scripter) *RedisBackend {
	return &RedisBackend{
		client: client,
		now:    time.Now,
	}
}

// Hit implements Backend
func (b *RedisBackend) Hit(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	now := b.now().UnixMilli()
	member := strconv.FormatInt(now, 10) + "-" + uuid.NewString()

	res, err := slidingWindowScript.Run(ctx, b.client, []string{key},
		now, window.Milliseconds(), limit, member).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("sliding window %s: %w", key, err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("sliding window %s: unexpected reply length %d", key, len(res))
	}

	return Decision{
		Allowed:   res[0] == 1,
		Limit:     limit,
		Remaining: int(res[1]),
		Reset:     res[2],
	}, nil
}
