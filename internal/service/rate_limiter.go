package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/Yukky887/ReminderBot/internal/config"
	redisclient "github.com/Yukky887/ReminderBot/internal/redis"
)

// rateLimitScript is a Lua script for sliding window rate limiting
var rateLimitScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

local windowStart = now - window

redis.call('ZREMRANGEBYSCORE', key, '-inf', windowStart)

local count = redis.call('ZCARD', key)

if count >= limit then
    local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
    local resetAt = 0
    if #oldest >= 2 then
        resetAt = tonumber(oldest[2]) + window
    else
        resetAt = now + window
    end
    return {0, resetAt}
end

redis.call('ZADD', key, now, now .. '-' .. math.random())
redis.call('EXPIRE', key, window + 10)

local resetAt = now + window
return {1, resetAt}
`)

type RateLimiter struct {
	client *redis.Client
}

func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{client: client}
}

// CheckLimit counts one hit against key and reports whether it fits in
// limit hits per window.
func (rl *RateLimiter) CheckLimit(
	ctx context.Context,
	key string,
	limit int,
	window time.Duration,
) (allowed bool, resetAt time.Time, err error) {
	now := time.Now().Unix()
	fullKey := fmt.Sprintf("ratelimit:%s", key)

	result, err := rateLimitScript.Run(
		ctx,
		rl.client,
		[]string{fullKey},
		now,
		int64(window.Seconds()),
		limit,
	).Int64Slice()
	if err != nil {
		return false, time.Now().Add(window), fmt.Errorf("run rate limit script: %w", err)
	}

	if len(result) != 2 {
		return false, time.Now().Add(window), fmt.Errorf("unexpected rate limit result: %v", result)
	}

	return result[0] == 1, time.Unix(result[1], 0), nil
}

// AllowPayTap limits how often one user can press the "I paid" button.
// Claims are de-duplicated in the store anyway, so a Redis outage lets the
// tap through.
func (rl *RateLimiter) AllowPayTap(ctx context.Context, telegramID int64) bool {
	allowed, _, err := rl.CheckLimit(ctx, redisclient.PayTapKey(telegramID), config.PayTapLimit, config.PayTapWindow)
	if err != nil {
		log.Warn().
			Err(err).
			Int64("telegramId", telegramID).
			Msg("pay tap rate limit check failed, allowing tap")
		return true
	}
	return allowed
}
