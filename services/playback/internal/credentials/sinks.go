package credentials

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// cookieMarginSeconds keeps the persisted credential's lifetime strictly
// inside the token's real validity.
const cookieMarginSeconds = 5

const sinkKeyPrefix = "drm_token:"

// SinkTTLSeconds is the lifetime, in seconds, of a persisted credential:
// max(1, expiresIn - 5). Shared by the redis sink and the cookie the
// handlers emit, so both sinks expire together.
func SinkTTLSeconds(cred Credential) int {
	ttl := cred.ExpiresInSeconds - cookieMarginSeconds
	if ttl < 1 {
		ttl = 1
	}
	return ttl
}

// RedisSink is the durable credential sink. Each refresh overwrites the
// user's entry; the TTL tracks the credential's remaining validity.
type RedisSink struct {
	Client *redis.Client
}

func NewRedisSink(dsn string) *RedisSink {
	opts, err := redis.ParseURL(dsn)
	if err != nil {
		opts = &redis.Options{Addr: dsn}
	}
	return &RedisSink{Client: redis.NewClient(opts)}
}

func (s *RedisSink) Put(ctx context.Context, userID string, cred Credential) error {
	ttl := time.Duration(SinkTTLSeconds(cred)) * time.Second
	return s.Client.Set(ctx, sinkKeyPrefix+userID, cred.Token, ttl).Err()
}
