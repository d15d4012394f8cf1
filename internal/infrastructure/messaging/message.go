// Package messaging 提供基于 Redis Streams 的任务队列
package messaging

import (
	"context"
	"encoding/json"
	"time"

	"rexi-api/pkg/logger"
)

// 消息类型
const (
	TypeImageGen = "image_gen"
)

// 随消息传递的日志关联字段
const (
	MetaRequestID = "request_id"
	MetaTraceID   = "trace_id"
	MetaScopeID   = "scope_id"
)

// metaLogKeys 元数据字段在 worker 日志上下文中对应的键
var metaLogKeys = map[string]logger.ContextKey{
	MetaRequestID: logger.RequestIDKey,
	MetaTraceID:   logger.TraceIDKey,
	MetaScopeID:   logger.ScopeIDKey,
}

// Message 队列消息
type Message struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Payload   json.RawMessage   `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewMessage 创建新消息
func NewMessage(id, msgType string, payload any) (*Message, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Message{
		ID:        id,
		Type:      msgType,
		Payload:   payloadBytes,
		Metadata:  make(map[string]string),
		CreatedAt: time.Now(),
	}, nil
}

// SetMetadata 设置元数据，空值忽略
func (m *Message) SetMetadata(key, value string) {
	if value == "" {
		return
	}
	if m.Metadata == nil {
		m.Metadata = make(map[string]string)
	}
	m.Metadata[key] = value
}

// GetMetadata 获取元数据
func (m *Message) GetMetadata(key string) string {
	if m.Metadata == nil {
		return ""
	}
	return m.Metadata[key]
}

// CaptureContext 把请求上下文中的关联字段写入元数据
func (m *Message) CaptureContext(ctx context.Context) {
	for meta, key := range metaLogKeys {
		if v, ok := ctx.Value(key).(string); ok {
			m.SetMetadata(meta, v)
		}
	}
}

// RestoreContext 把元数据中的关联字段恢复到日志上下文
func (m *Message) RestoreContext(ctx context.Context) context.Context {
	for meta, key := range metaLogKeys {
		if v := m.GetMetadata(meta); v != "" {
			ctx = logger.WithContext(ctx, key, v)
		}
	}
	return ctx
}

// UnmarshalPayload 解析消息载荷
func (m *Message) UnmarshalPayload(v any) error {
	return json.Unmarshal(m.Payload, v)
}

// Stream 流定义
type Stream string

const (
	StreamImageGen Stream = "stream:image:gen"
)

// DLQStream 获取对应的死信队列流名称
func (s Stream) DLQStream() string {
	return "dlq:" + string(s)
}

// ConsumerGroup 消费者组定义
type ConsumerGroup string

const (
	ConsumerGroupImageWorker ConsumerGroup = "cg-image-worker"
)

// BackoffConfig 退避配置
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// DefaultBackoffConfig 默认退避配置
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Initial:    time.Second,
		Max:        time.Minute,
		Multiplier: 2,
	}
}

// CalculateBackoff 计算第 retryCount 次重试前的等待时间
func (c BackoffConfig) CalculateBackoff(retryCount int) time.Duration {
	backoff := c.Initial
	for i := 0; i < retryCount; i++ {
		backoff = time.Duration(float64(backoff) * c.Multiplier)
		if backoff > c.Max {
			return c.Max
		}
	}
	return backoff
}
