package callback

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"rexi-api/internal/domain/service"
	"rexi-api/pkg/metrics"
)

func TestChatModelCallback_RecordsSuccess(t *testing.T) {
	h := newChatModelCallbackHandler()
	ctx := service.WithProvider(context.Background(), "cb-success")

	before := testutil.ToFloat64(metrics.LLMCallTotal.WithLabelValues("cb-success", "m-1", "success"))
	ctx = h.OnStart(ctx, nil, &model.CallbackInput{Config: &model.Config{Model: "m-1"}})
	h.OnEnd(ctx, nil, &model.CallbackOutput{
		Message:    schema.AssistantMessage("ok", nil),
		TokenUsage: &model.TokenUsage{PromptTokens: 10, CompletionTokens: 5},
	})

	assert.Equal(t, before+1, testutil.ToFloat64(metrics.LLMCallTotal.WithLabelValues("cb-success", "m-1", "success")))
	assert.Equal(t, float64(10), testutil.ToFloat64(metrics.LLMTokensUsed.WithLabelValues("cb-success", "m-1", "prompt")))
}

func TestChatModelCallback_RecordsError(t *testing.T) {
	h := newChatModelCallbackHandler()
	ctx := service.WithProvider(context.Background(), "cb-error")

	ctx = h.OnStart(ctx, nil, &model.CallbackInput{Config: &model.Config{Model: "m-2"}})
	h.OnError(ctx, nil, errors.New("timeout"))

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.LLMCallTotal.WithLabelValues("cb-error", "m-2", "error")))
}
