package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"netpulse/internal/models"
)

const recentKey = "sessions:recent"

var ErrSessionNotFound = errors.New("session not found")

// Archive keeps finished sessions for later reports and exports.
type Archive interface {
	StoreSession(ctx context.Context, sess models.Session) error
	GetSession(ctx context.Context, id string) (models.Session, error)
	RecentSessionIDs(ctx context.Context, count int64) ([]string, error)
	Close() error
}

type RedisClient struct {
	client *redis.Client
	ttl    time.Duration
	keep   int64
}

// NewRedisClient connects to addr and keeps sessions for ttl, listing at
// most keep of them as recent.
func NewRedisClient(ctx context.Context, addr string, ttl time.Duration, keep int64) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "ping redis %s", addr)
	}

	return &RedisClient{client: client, ttl: ttl, keep: keep}, nil
}

func sessionKey(id string) string {
	return "session:" + id
}

func (r *RedisClient) StoreSession(ctx context.Context, sess models.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return errors.Wrap(err, "marshal session")
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(sess.ID), data, r.ttl)
		pipe.LRem(ctx, recentKey, 0, sess.ID)
		pipe.LPush(ctx, recentKey, sess.ID)
		pipe.LTrim(ctx, recentKey, 0, r.keep-1)
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "store session %s", sess.ID)
	}
	return nil
}

func (r *RedisClient) GetSession(ctx context.Context, id string) (models.Session, error) {
	data, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Session{}, ErrSessionNotFound
	}
	if err != nil {
		return models.Session{}, errors.Wrapf(err, "get session %s", id)
	}

	var sess models.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return models.Session{}, errors.Wrapf(err, "decode session %s", id)
	}
	return sess, nil
}

// RecentSessionIDs lists archived session ids, newest first. Ids whose
// payload already expired are skipped.
func (r *RedisClient) RecentSessionIDs(ctx context.Context, count int64) ([]string, error) {
	ids, err := r.client.LRange(ctx, recentKey, 0, count-1).Result()
	if err != nil {
		return nil, errors.Wrap(err, "list recent sessions")
	}

	out := make([]string, 0, len(ids))
	for _, id := range ids {
		n, err := r.client.Exists(ctx, sessionKey(id)).Result()
		if err != nil || n == 0 {
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

func (r *RedisClient) Close() error {
	return r.client.Close()
}
