package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// bucketScript refills the bucket for the time elapsed since its last use,
// tries to take one upload token and stores the new level. It returns
// {allowed, remaining, wait_ms}.
//
// KEYS[1] bucket hash
// ARGV[1] capacity  ARGV[2] tokens per ms  ARGV[3] now ms  ARGV[4] ttl ms
var bucketScript = redis.NewScript(`
local cap = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local state = redis.call("HMGET", KEYS[1], "level", "seen")
local level = tonumber(state[1]) or cap
local seen = tonumber(state[2]) or now
level = math.min(cap, level + math.max(0, now - seen) * rate)

local ok, wait = 0, 0
if level >= 1 then
  level = level - 1
  ok = 1
else
  wait = math.ceil((1 - level) / rate)
end

redis.call("HSET", KEYS[1], "level", level, "seen", now)
redis.call("PEXPIRE", KEYS[1], ARGV[4])
return {ok, math.floor(level), wait}
`)

// RedisTokenBucket allows each subject capacity uploads per window. State
// lives in Redis so every API replica shares the same buckets.
type RedisTokenBucket struct {
	client    redis.UniversalClient
	capacity  int64
	perMS     float64
	ttl       time.Duration
	keyPrefix string
	now       func() time.Time
}

func NewRedisTokenBucket(client redis.UniversalClient, capacity int, window time.Duration, keyPrefix string) (*RedisTokenBucket, error) {
	switch {
	case client == nil:
		return nil, errors.New("redis client is required")
	case capacity <= 0:
		return nil, errors.New("capacity must be positive")
	case window <= 0:
		return nil, errors.New("window must be positive")
	}

	keyPrefix = strings.TrimRight(strings.TrimSpace(keyPrefix), ":")
	if keyPrefix == "" {
		keyPrefix = "pixelpress:ratelimit"
	}

	return &RedisTokenBucket{
		client:    client,
		capacity:  int64(capacity),
		perMS:     float64(capacity) / float64(max(1, window.Milliseconds())),
		ttl:       2 * window,
		keyPrefix: keyPrefix,
		now:       time.Now,
	}, nil
}

func (l *RedisTokenBucket) Allow(ctx context.Context, subject string) (Decision, error) {
	if subject = strings.TrimSpace(subject); subject == "" {
		subject = "anonymous"
	}

	values, err := bucketScript.Run(ctx, l.client,
		[]string{l.keyPrefix + ":" + subject},
		l.capacity, l.perMS, l.now().UnixMilli(), l.ttl.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("token bucket %s: %w", subject, err)
	}
	if len(values) != 3 {
		return Decision{}, fmt.Errorf("token bucket %s: expected 3 values, got %d", subject, len(values))
	}

	return Decision{
		Allowed:    values[0] == 1,
		Remaining:  values[1],
		RetryAfter: time.Duration(values[2]) * time.Millisecond,
	}, nil
}
