package registry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Entry is what the registry knows about a live session.
type Entry struct {
	ID       string
	Dealer   string
	Player   string
	ClientIP string
	Played   int
}

// Registry tracks live sessions outside the dealer process.
type Registry interface {
	Register(ctx context.Context, e Entry) error
	Touch(ctx context.Context, e Entry) error
	Remove(ctx context.Context, id string) error
}

// Nop is used when no Redis is configured.
type Nop struct{}

func (Nop) Register(context.Context, Entry) error { return nil }
func (Nop) Touch(context.Context, Entry) error    { return nil }
func (Nop) Remove(context.Context, string) error  { return nil }

// RedisRegistry stores one key per session with a TTL, plus a shadow hash
// with the latest progress. Keys expire on their own if the dealer dies.
type RedisRegistry struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisRegistry wraps an existing client.
func NewRedisRegistry(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisRegistry{redis: client, ttl: ttl, logger: logger.With("component", "registry")}
}

// Connect dials Redis at addr and pings it.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   0,
	})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", addr, err)
	}
	return client, nil
}

// SessionKey is the registry key of a session.
func SessionKey(id string) string {
	return fmt.Sprintf("blackjack:sess:%s", id)
}

// ShadowKey holds per-session progress fields.
func ShadowKey(id string) string {
	return fmt.Sprintf("blackjack:shadow:%s", id)
}

// SessionValue is the string stored under SessionKey.
func SessionValue(e Entry) string {
	return fmt.Sprintf("%s:%s:%s", e.Dealer, e.Player, e.ClientIP)
}

func (r *RedisRegistry) Register(ctx context.Context, e Entry) error {
	key := SessionKey(e.ID)
	value := SessionValue(e)
	if err := r.redis.Set(ctx, key, value, r.ttl).Err(); err != nil {
		return fmt.Errorf("register session %s: %w", e.ID, err)
	}
	r.logger.Debug("session registered", "key", key, "value", value)
	return r.Touch(ctx, e)
}

func (r *RedisRegistry) Touch(ctx context.Context, e Entry) error {
	shadowKey := ShadowKey(e.ID)
	_, err := r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Expire(ctx, SessionKey(e.ID), r.ttl)
		pipe.HSet(ctx, shadowKey, "played", e.Played, "ts", time.Now().Unix())
		pipe.Expire(ctx, shadowKey, r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("touch session %s: %w", e.ID, err)
	}
	return nil
}

func (r *RedisRegistry) Remove(ctx context.Context, id string) error {
	if err := r.redis.Del(ctx, SessionKey(id), ShadowKey(id)).Err(); err != nil {
		return fmt.Errorf("remove session %s: %w", id, err)
	}
	return nil
}

// Lookup returns the stored value and progress for id, for tooling and tests.
func (r *RedisRegistry) Lookup(ctx context.Context, id string) (string, map[string]string, error) {
	value, err := r.redis.Get(ctx, SessionKey(id)).Result()
	if err != nil {
		return "", nil, err
	}
	shadow, err := r.redis.HGetAll(ctx, ShadowKey(id)).Result()
	if err != nil {
		return "", nil, err
	}
	return value, shadow, nil
}
