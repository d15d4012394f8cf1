package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"rexi-api/internal/domain/service"
	"rexi-api/pkg/logger"
	"rexi-api/pkg/tracer"
)

// Producer 消息生产者
type Producer struct {
	client *redis.Client
	maxLen int64
}

// NewProducer 创建消息生产者
func NewProducer(client *redis.Client, maxLen int64) *Producer {
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &Producer{
		client: client,
		maxLen: maxLen,
	}
}

// Publish 发布消息到指定流，返回流内消息 ID
func (p *Producer) Publish(ctx context.Context, stream Stream, msg *Message) (string, error) {
	ctx, span := tracer.Start(ctx, "producer.Publish",
		trace.WithAttributes(
			attribute.String("stream", string(stream)),
			attribute.String("message.id", msg.ID),
			attribute.String("message.type", msg.Type),
		))
	defer span.End()

	data, err := json.Marshal(msg)
	if err != nil {
		tracer.RecordError(span, err)
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	result, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: string(stream),
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			"data": string(data),
		},
	}).Result()
	if err != nil {
		tracer.RecordError(span, err)
		return "", fmt.Errorf("failed to publish message: %w", err)
	}

	span.SetAttributes(attribute.String("stream.message_id", result))
	return result, nil
}

// PublishImageJob 发布生图任务，消息 ID 即任务 ID
func (p *Producer) PublishImageJob(ctx context.Context, job service.ImageJob) (string, error) {
	msg, err := NewMessage(job.TaskID, TypeImageGen, job)
	if err != nil {
		return "", err
	}
	msg.CaptureContext(ctx)
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		msg.SetMetadata(MetaTraceID, sc.TraceID().String())
	}
	return p.Publish(ctx, StreamImageGen, msg)
}

// StreamDispatcher 通过 Redis Stream 投递生图任务
type StreamDispatcher struct {
	producer *Producer
}

// NewStreamDispatcher 创建队列投递器
func NewStreamDispatcher(producer *Producer) *StreamDispatcher {
	return &StreamDispatcher{producer: producer}
}

// Dispatch 实现 service.ImageDispatcher
func (d *StreamDispatcher) Dispatch(ctx context.Context, job service.ImageJob) error {
	id, err := d.producer.PublishImageJob(ctx, job)
	if err != nil {
		return err
	}
	logger.Debug(ctx, "image job enqueued", "task_id", job.TaskID, "stream_id", id)
	return nil
}
