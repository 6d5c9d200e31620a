package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "recipebox:ratelimit:"

const tokenBucketLua = `
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local requested = tonumber(ARGV[4])

if rate <= 0 or burst <= 0 then
  return {1, 0, burst}
end

local data = redis.call("HMGET", key, "tokens", "ts")
local tokens = tonumber(data[1])
local ts = tonumber(data[2])
if tokens == nil then
  tokens = burst
end
if ts == nil then
  ts = now
end

local delta = math.max(0, now - ts)
local refill = (delta * rate) / 1000.0
tokens = math.min(burst, tokens + refill)

local allowed = tokens >= requested
local wait_ms = 0
if allowed then
  tokens = tokens - requested
else
  wait_ms = math.ceil((requested - tokens) * 1000.0 / rate)
end

redis.call("HMSET", key, "tokens", tokens, "ts", now)
redis.call("PEXPIRE", key, math.ceil((burst / rate) * 1000.0 * 2))

return {allowed and 1 or 0, wait_ms, tokens}
`

// Limiter 是基于 Redis 的令牌桶限流器。
// 每个调用方（如客户端 IP）对应一个独立的桶。
type Limiter struct {
	rdb    *redis.Client
	prefix string
	rate   float64
	burst  float64
	script *redis.Script
}

// New 创建限流器。rate 是每秒补充的令牌数，burst 是桶容量。
func New(rdb *redis.Client, prefix string, rate, burst float64) *Limiter {
	if prefix == "" {
		prefix = keyPrefix + "default:"
	}
	return &Limiter{
		rdb:    rdb,
		prefix: prefix,
		rate:   rate,
		burst:  burst,
		script: redis.NewScript(tokenBucketLua),
	}
}

// Allow 尝试为 key 取一个令牌，不阻塞。
// 被拒绝时返回建议的重试等待时长。限流器未配置时直接放行。
func (l *Limiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	if l == nil || l.rdb == nil || l.rate <= 0 || l.burst <= 0 {
		return true, 0, nil
	}

	now := time.Now().UnixMilli()
	res, err := l.script.Run(ctx, l.rdb, []string{l.prefix + key}, l.rate, l.burst, now, 1).Result()
	if err != nil {
		return false, 0, fmt.Errorf("ratelimit eval: %w", err)
	}

	values, ok := res.([]interface{})
	if !ok || len(values) < 2 {
		return false, 0, fmt.Errorf("ratelimit invalid result")
	}

	allowed := toInt64(values[0]) == 1
	wait := time.Duration(toInt64(values[1])) * time.Millisecond
	return allowed, wait, nil
}

func toInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if t == "" {
			return 0
		}
		if parsed, err := strconv.ParseInt(t, 10, 64); err == nil {
			return parsed
		}
	}
	return 0
}
