package presence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionsKey      = "presence:sessions"
	sessionKeyPrefix = "presence:session:"
)

// RedisStore keeps the set of session ids in presence:sessions and the
// details of each in a hash presence:session:<id> that expires after ttl,
// so sessions of a crashed process eventually disappear.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// constructor for RedisStore; url may be "host:port" or a redis:// URL
func NewRedisStore(url, password string, ttl time.Duration) (*RedisStore, error) {
	var opts *redis.Options
	if strings.HasPrefix(url, "redis://") || strings.HasPrefix(url, "rediss://") {
		parsed, err := redis.ParseURL(url)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: url}
	}
	if password != "" {
		opts.Password = password
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	rdb := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisStoreFromClient(rdb, ttl), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{client: client, ttl: ttl}
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

func (r *RedisStore) Add(ctx context.Context, s Session) error {
	key := sessionKey(s.ID)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, sessionsKey, s.ID)
		pipe.HSet(ctx, key, map[string]any{
			"remote_addr":  s.RemoteAddr,
			"connected_at": s.ConnectedAt.Format(time.RFC3339Nano),
		})
		pipe.Expire(ctx, key, r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to add session %s: %w", s.ID, err)
	}
	return nil
}

func (r *RedisStore) Remove(ctx context.Context, id string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, sessionsKey, id)
		pipe.Del(ctx, sessionKey(id))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to remove session %s: %w", id, err)
	}
	return nil
}

func (r *RedisStore) Count(ctx context.Context) (int64, error) {
	n, err := r.client.SCard(ctx, sessionsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return n, nil
}

// List returns every session whose details have not expired. Ids whose
// hash is gone are pruned from the set on the way.
func (r *RedisStore) List(ctx context.Context) ([]Session, error) {
	ids, err := r.client.SMembers(ctx, sessionsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	sessions := make([]Session, 0, len(ids))
	for _, id := range ids {
		fields, err := r.client.HGetAll(ctx, sessionKey(id)).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("failed to read session %s: %w", id, err)
		}
		if len(fields) == 0 {
			r.client.SRem(ctx, sessionsKey, id)
			continue
		}

		s := Session{ID: id, RemoteAddr: fields["remote_addr"]}
		if ts, ok := fields["connected_at"]; ok {
			s.ConnectedAt, _ = time.Parse(time.RFC3339Nano, ts)
		}
		sessions = append(sessions, s)
	}

	sortSessions(sessions)
	return sessions, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
