package redis

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"rexi-api/internal/domain/repository"
)

const sessionKeyPrefix = "rexi:session:"

// SessionKV 每个浏览会话一个 hash，写入时整体续期
type SessionKV struct {
	client *Client
	ttl    time.Duration
}

// NewSessionKV 创建草稿存储
func NewSessionKV(client *Client, ttl time.Duration) *SessionKV {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionKV{client: client, ttl: ttl}
}

func scopeKey(scope string) string {
	return sessionKeyPrefix + scope
}

// Get 读取值
func (s *SessionKV) Get(ctx context.Context, scope, key string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "redis.SessionKV.Get",
		trace.WithAttributes(attribute.String("session.key", key)))
	defer span.End()

	v, err := s.client.rdb.HGet(ctx, scopeKey(scope), key).Bytes()
	if err != nil {
		if IsNil(err) {
			return nil, repository.ErrKeyNotFound
		}
		span.RecordError(err)
		return nil, err
	}
	return v, nil
}

// Set 写入值并续期
func (s *SessionKV) Set(ctx context.Context, scope, key string, value []byte) error {
	ctx, span := tracer.Start(ctx, "redis.SessionKV.Set",
		trace.WithAttributes(
			attribute.String("session.key", key),
			attribute.Int("session.value_size", len(value)),
		))
	defer span.End()

	hkey := scopeKey(scope)
	pipe := s.client.rdb.TxPipeline()
	pipe.HSet(ctx, hkey, key, value)
	pipe.Expire(ctx, hkey, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// Del 删除键
func (s *SessionKV) Del(ctx context.Context, scope string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ctx, span := tracer.Start(ctx, "redis.SessionKV.Del",
		trace.WithAttributes(attribute.Int("session.key_count", len(keys))))
	defer span.End()

	if err := s.client.rdb.HDel(ctx, scopeKey(scope), keys...).Err(); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}
