// Package callback 注册 Eino 全局回调，统一记录 LLM 调用的指标与链路
package callback

import (
	"context"
	"sync"
	"time"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	cbtemplate "github.com/cloudwego/eino/utils/callbacks"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"rexi-api/internal/domain/service"
	"rexi-api/pkg/metrics"
)

var registerOnce sync.Once

// Init 把 ChatModel 回调注册为 Eino 全局处理器，重复调用无副作用
func Init() {
	registerOnce.Do(func() {
		einocb.AppendGlobalHandlers(
			cbtemplate.NewHandlerHelper().ChatModel(newChatModelCallbackHandler()).Handler(),
		)
	})
}

type callState struct {
	start time.Time
	model string
}

type callStateKey struct{}

func newChatModelCallbackHandler() *cbtemplate.ModelCallbackHandler {
	return &cbtemplate.ModelCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *model.CallbackInput) context.Context {
			modelName := modelNameFromInput(input)
			ctx = context.WithValue(ctx, callStateKey{}, &callState{start: time.Now(), model: modelName})

			attrs := []attribute.KeyValue{
				attribute.String("llm.operation", service.OperationFromContext(ctx)),
				attribute.String("llm.provider", service.ProviderFromContext(ctx)),
				attribute.String("llm.model", modelName),
			}
			if info != nil {
				attrs = append(attrs, attribute.String("eino.node_name", info.Name))
			}

			ctx, _ = otel.Tracer("eino").Start(ctx, "llm.generate", trace.WithAttributes(attrs...))
			return ctx
		},

		OnEnd: func(ctx context.Context, _ *einocb.RunInfo, output *model.CallbackOutput) context.Context {
			provider := service.ProviderFromContext(ctx)
			modelName := modelNameFromOutput(output)
			if modelName == "" {
				modelName = stateFrom(ctx).model
			}
			observe(ctx, provider, modelName, "success")

			span := trace.SpanFromContext(ctx)
			if output != nil && output.TokenUsage != nil {
				usage := output.TokenUsage
				metrics.LLMTokensUsed.WithLabelValues(provider, modelName, "prompt").Add(float64(usage.PromptTokens))
				metrics.LLMTokensUsed.WithLabelValues(provider, modelName, "completion").Add(float64(usage.CompletionTokens))
				span.SetAttributes(
					attribute.Int("llm.prompt_tokens", usage.PromptTokens),
					attribute.Int("llm.completion_tokens", usage.CompletionTokens),
				)
			}
			span.End()
			return ctx
		},

		OnError: func(ctx context.Context, _ *einocb.RunInfo, err error) context.Context {
			observe(ctx, service.ProviderFromContext(ctx), stateFrom(ctx).model, "error")

			span := trace.SpanFromContext(ctx)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
			return ctx
		},
	}
}

func observe(ctx context.Context, provider, modelName, status string) {
	metrics.LLMCallTotal.WithLabelValues(provider, modelName, status).Inc()
	if st := stateFrom(ctx); !st.start.IsZero() {
		metrics.LLMCallDuration.WithLabelValues(provider, modelName).Observe(time.Since(st.start).Seconds())
	}
}

func stateFrom(ctx context.Context) callState {
	if st, ok := ctx.Value(callStateKey{}).(*callState); ok && st != nil {
		return *st
	}
	return callState{}
}

func modelNameFromInput(in *model.CallbackInput) string {
	if in == nil || in.Config == nil {
		return ""
	}
	return in.Config.Model
}

func modelNameFromOutput(out *model.CallbackOutput) string {
	if out == nil || out.Config == nil {
		return ""
	}
	return out.Config.Model
}
