package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rexi-api/internal/domain/service"
	"rexi-api/pkg/logger"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func newTestConsumer(client *redis.Client) *Consumer {
	return NewConsumer(client, ConsumerConfig{
		Stream:       StreamImageGen,
		Group:        ConsumerGroupImageWorker,
		ConsumerName: "worker-1",
		RetryLimit:   2,
	})
}

func TestBackoffConfig_CalculateBackoff(t *testing.T) {
	cfg := BackoffConfig{Initial: time.Second, Max: 10 * time.Second, Multiplier: 2}
	assert.Equal(t, time.Second, cfg.CalculateBackoff(0))
	assert.Equal(t, 4*time.Second, cfg.CalculateBackoff(2))
	assert.Equal(t, 10*time.Second, cfg.CalculateBackoff(5))
}

func TestMessage_Metadata(t *testing.T) {
	msg, err := NewMessage("t1", TypeImageGen, service.ImageJob{TaskID: "t1", Prompt: "p"})
	require.NoError(t, err)

	msg.SetMetadata("request_id", "")
	assert.Empty(t, msg.Metadata)
	msg.SetMetadata("request_id", "r1")
	assert.Equal(t, "r1", msg.GetMetadata("request_id"))

	var job service.ImageJob
	require.NoError(t, msg.UnmarshalPayload(&job))
	assert.Equal(t, "p", job.Prompt)
}

func TestMessage_ContextRoundTrip(t *testing.T) {
	ctx := logger.WithContext(context.Background(), logger.RequestIDKey, "req-1")
	ctx = logger.WithContext(ctx, logger.ScopeIDKey, "tab-1")

	msg, err := NewMessage("t1", TypeImageGen, service.ImageJob{TaskID: "t1"})
	require.NoError(t, err)
	msg.CaptureContext(ctx)
	assert.Equal(t, "req-1", msg.GetMetadata(MetaRequestID))
	assert.Equal(t, "tab-1", msg.GetMetadata(MetaScopeID))
	assert.Empty(t, msg.GetMetadata(MetaTraceID))

	restored := msg.RestoreContext(context.Background())
	assert.Equal(t, "req-1", restored.Value(logger.RequestIDKey))
	assert.Equal(t, "tab-1", restored.Value(logger.ScopeIDKey))
	assert.Nil(t, restored.Value(logger.TraceIDKey))
}

func TestStreamDispatcher_DeliversToConsumer(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()
	consumer := newTestConsumer(client)
	require.NoError(t, consumer.EnsureGroup(ctx))

	var got service.ImageJob
	consumer.RegisterHandler(TypeImageGen, func(_ context.Context, msg *Message) error {
		return msg.UnmarshalPayload(&got)
	})

	dispatcher := NewStreamDispatcher(NewProducer(client, 100))
	require.NoError(t, dispatcher.Dispatch(ctx, service.ImageJob{TaskID: "42", Prompt: "a cat"}))

	n, err := consumer.ConsumeOnce(ctx, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "42", got.TaskID)
	assert.Equal(t, "a cat", got.Prompt)

	pending, err := client.XPending(ctx, string(StreamImageGen), string(ConsumerGroupImageWorker)).Result()
	require.NoError(t, err)
	assert.Zero(t, pending.Count)
}

func TestConsumer_FailedHandlerLeavesPending(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()
	consumer := newTestConsumer(client)
	require.NoError(t, consumer.EnsureGroup(ctx))
	consumer.RegisterHandler(TypeImageGen, func(context.Context, *Message) error {
		return errors.New("db unavailable")
	})

	_, err := NewProducer(client, 0).PublishImageJob(ctx, service.ImageJob{TaskID: "1", Prompt: "p"})
	require.NoError(t, err)

	_, err = consumer.ConsumeOnce(ctx, 10*time.Millisecond)
	require.NoError(t, err)

	pending, err := client.XPending(ctx, string(StreamImageGen), string(ConsumerGroupImageWorker)).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1, pending.Count)
}

func TestConsumer_UnknownTypeIsAcked(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()
	consumer := newTestConsumer(client)
	require.NoError(t, consumer.EnsureGroup(ctx))

	msg, err := NewMessage("x", "unknown", map[string]string{})
	require.NoError(t, err)
	_, err = NewProducer(client, 0).Publish(ctx, StreamImageGen, msg)
	require.NoError(t, err)

	_, err = consumer.ConsumeOnce(ctx, 10*time.Millisecond)
	require.NoError(t, err)

	pending, err := client.XPending(ctx, string(StreamImageGen), string(ConsumerGroupImageWorker)).Result()
	require.NoError(t, err)
	assert.Zero(t, pending.Count)
}

func TestConsumer_MoveToDLQ(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()
	consumer := newTestConsumer(client)

	msg, err := NewMessage("9", TypeImageGen, service.ImageJob{TaskID: "9"})
	require.NoError(t, err)
	consumer.moveToDLQ(ctx, msg, errors.New("boom"))

	length, err := client.XLen(ctx, StreamImageGen.DLQStream()).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1, length)
}

func TestConsumer_EnsureGroupIdempotent(t *testing.T) {
	client := newTestRedis(t)
	consumer := newTestConsumer(client)
	require.NoError(t, consumer.EnsureGroup(context.Background()))
	require.NoError(t, consumer.EnsureGroup(context.Background()))
}
