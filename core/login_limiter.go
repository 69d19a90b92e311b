package core

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultLoginMaxAttempts = 5
	defaultLoginWindow      = 15 * time.Minute
	defaultLoginLockout     = 10 * time.Minute
)

// LoginLimiter counts failed logins per key (client IP) and locks the key
// once MaxAttempts failures happen inside Window.
type LoginLimiter struct {
	client      *redis.Client
	MaxAttempts int
	Window      time.Duration
	Lockout     time.Duration
}

func NewLoginLimiter(client *redis.Client, maxAttempts int) *LoginLimiter {
	if maxAttempts <= 0 {
		maxAttempts = defaultLoginMaxAttempts
	}
	return &LoginLimiter{
		client:      client,
		MaxAttempts: maxAttempts,
		Window:      defaultLoginWindow,
		Lockout:     defaultLoginLockout,
	}
}

// Check returns how long key stays locked; zero means attempts are allowed.
func (l *LoginLimiter) Check(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := l.client.PTTL(ctx, loginLockKey+key).Result()
	if err != nil {
		return 0, err
	}
	// PTTL reports -2 for a missing key and -1 for one without expiry.
	if ttl <= 0 {
		return 0, nil
	}
	return ttl, nil
}

// recordFailureScript counts a failure and arms the window TTL in one step.
// A counter that lost its TTL gets it back, so it never outlives the window.
// Reaching the limit swaps the counter for the lock key.
var recordFailureScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 or redis.call('PTTL', KEYS[1]) < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
if n >= tonumber(ARGV[2]) then
  redis.call('SET', KEYS[2], '1', 'PX', ARGV[3])
  redis.call('DEL', KEYS[1])
end
return n
`)

// RecordFailure counts one failure and returns the attempts left before lockout.
func (l *LoginLimiter) RecordFailure(ctx context.Context, key string) (int, error) {
	n, err := recordFailureScript.Run(ctx, l.client,
		[]string{loginAttemptKey + key, loginLockKey + key},
		l.Window.Milliseconds(), l.MaxAttempts, l.Lockout.Milliseconds(),
	).Int64()
	if err != nil {
		return 0, err
	}
	if n >= int64(l.MaxAttempts) {
		return 0, nil
	}
	return l.MaxAttempts - int(n), nil
}

// Reset clears counters after a successful login.
func (l *LoginLimiter) Reset(ctx context.Context, key string) error {
	return l.client.Del(ctx, loginAttemptKey+key, loginLockKey+key).Err()
}
