package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound is returned when a token is unknown or expired.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore persists issued tokens. The authenticator only mints them.
type SessionStore interface {
	Save(ctx context.Context, sd SessionDescriptor, ttl time.Duration) error
	Lookup(ctx context.Context, token string) (*SessionDescriptor, error)
	Delete(ctx context.Context, token string) error
	Count(ctx context.Context) (int64, error)
}

// RedisSessionStore keys sessions by the SHA-256 of the token, so a Redis dump
// does not expose usable bearer tokens.
type RedisSessionStore struct {
	client *redis.Client
}

func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

type storedSession struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func sessionKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return sessionKeyPrefix + hex.EncodeToString(sum[:])
}

func (s *RedisSessionStore) Save(ctx context.Context, sd SessionDescriptor, ttl time.Duration) error {
	if sd.Token == "" {
		return errors.New("empty session token")
	}
	data, err := json.Marshal(storedSession{ID: sd.ID, Name: sd.Name, Email: sd.Email, CreatedAt: time.Now()})
	if err != nil {
		return err
	}
	return s.client.Set(ctx, sessionKey(sd.Token), data, ttl).Err()
}

func (s *RedisSessionStore) Lookup(ctx context.Context, token string) (*SessionDescriptor, error) {
	if token == "" {
		return nil, ErrSessionNotFound
	}
	val, err := s.client.Get(ctx, sessionKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	var st storedSession
	if err := json.Unmarshal([]byte(val), &st); err != nil {
		return nil, err
	}
	return &SessionDescriptor{ID: st.ID, Name: st.Name, Email: st.Email, IsLoggedIn: true, Token: token}, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.client.Del(ctx, sessionKey(token)).Err()
}

// Count scans live session keys. Intended for the status page, not hot paths.
func (s *RedisSessionStore) Count(ctx context.Context) (int64, error) {
	var n int64
	iter := s.client.Scan(ctx, 0, sessionKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n++
	}
	return n, iter.Err()
}
