package service

import (
	"context"
	"strings"
)

type llmCtxKey string

const (
	llmCtxKeyOperation llmCtxKey = "llm_operation"
	llmCtxKeyProvider  llmCtxKey = "llm_provider"
)

const unknownLabel = "unknown"

// WithOperation 标记本次 LLM 调用所属的业务操作（analyze / poetry / rewrite）
func WithOperation(ctx context.Context, op string) context.Context {
	return withLabel(ctx, llmCtxKeyOperation, op)
}

// WithProvider 标记本次 LLM 调用的提供商
func WithProvider(ctx context.Context, provider string) context.Context {
	return withLabel(ctx, llmCtxKeyProvider, provider)
}

// OperationFromContext 读取业务操作标签
func OperationFromContext(ctx context.Context) string {
	return labelFromContext(ctx, llmCtxKeyOperation)
}

// ProviderFromContext 读取提供商标签
func ProviderFromContext(ctx context.Context) string {
	return labelFromContext(ctx, llmCtxKeyProvider)
}

func withLabel(ctx context.Context, key llmCtxKey, value string) context.Context {
	v := strings.TrimSpace(value)
	if ctx == nil || v == "" {
		return ctx
	}
	return context.WithValue(ctx, key, v)
}

func labelFromContext(ctx context.Context, key llmCtxKey) string {
	if ctx == nil {
		return unknownLabel
	}
	s, ok := ctx.Value(key).(string)
	if !ok || s == "" {
		return unknownLabel
	}
	return s
}
