package core

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClientRaw exposes a minimal subset used for metrics and heartbeat.
type RedisClientRaw interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
	LLen(ctx context.Context, key string) *redis.IntCmd
	ZCard(ctx context.Context, key string) *redis.IntCmd
	ZCount(ctx context.Context, key, min, max string) *redis.IntCmd
}

// NewRedisClient returns a configured go-redis client from URL (e.g., redis://localhost:6379/0).
func NewRedisClient(redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		return nil, errors.New("empty redis url")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return client, nil
}

// Reserve moves one item from the pending list into the processing zset,
// scored by its visibility deadline, so a crashed worker does not lose it.
var reserveScript = redis.NewScript(`
local v = redis.call('RPOP', KEYS[1])
if v then
  redis.call('ZADD', KEYS[2], ARGV[1], v)
end
return v
`)

var requeueScript = redis.NewScript(`
local vals = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
local count = #vals
if count > 0 then
  redis.call('ZREM', KEYS[1], unpack(vals))
  redis.call('LPUSH', KEYS[2], unpack(vals))
end
return vals
`)

// MailQueue is a reliable Redis queue of welcome-mail jobs.
type MailQueue struct {
	client *redis.Client
}

func NewMailQueue(client *redis.Client) *MailQueue {
	return &MailQueue{client: client}
}

// EnqueueWelcome pushes a job to the head of the pending list.
func (q *MailQueue) EnqueueWelcome(ctx context.Context, job MailJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.Enqueue(ctx, string(data))
}

// Enqueue pushes a raw payload (LPUSH).
func (q *MailQueue) Enqueue(ctx context.Context, payload string) error {
	return q.client.LPush(ctx, MailPendingKey, payload).Err()
}

// Reserve pops the oldest payload and keeps it in processing until Ack or
// visibility expiry. It returns redis.Nil when the queue is empty.
func (q *MailQueue) Reserve(ctx context.Context, visibility time.Duration) (string, error) {
	expireScore := float64(time.Now().Add(visibility).UnixMilli())
	res, err := reserveScript.Run(ctx, q.client, []string{MailPendingKey, MailProcessingKey}, expireScore).Result()
	if err != nil {
		return "", err
	}
	if res == nil {
		return "", redis.Nil
	}
	if s, ok := res.(string); ok {
		return s, nil
	}
	return "", errors.New("unexpected reserve response type")
}

// Ack removes a processing payload after it was handled.
func (q *MailQueue) Ack(ctx context.Context, payload string) error {
	return q.client.ZRem(ctx, MailProcessingKey, payload).Err()
}

// RequeueExpired moves processing payloads whose deadline passed back to pending.
func (q *MailQueue) RequeueExpired(ctx context.Context, now time.Time) ([]string, error) {
	score := float64(now.UnixMilli())
	res, err := requeueScript.Run(ctx, q.client, []string{MailProcessingKey, MailPendingKey}, score).Result()
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	rawVals, ok := res.([]interface{})
	if !ok {
		return nil, errors.New("unexpected requeue response type")
	}
	out := make([]string, 0, len(rawVals))
	for _, v := range rawVals {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// IncrementRetry bumps and returns the retry counter of a job.
func (q *MailQueue) IncrementRetry(ctx context.Context, jobID string) (int64, error) {
	return q.client.HIncrBy(ctx, MailRetryKey, jobID, 1).Result()
}

// ClearRetry forgets the retry counter of a finished job.
func (q *MailQueue) ClearRetry(ctx context.Context, jobID string) error {
	return q.client.HDel(ctx, MailRetryKey, jobID).Err()
}
