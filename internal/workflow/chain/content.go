// Package chain 编排提示词模板与 ChatModel 调用
package chain

import (
	"context"
	"fmt"
	"strings"
	"sync"

	openaiopts "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	llmctx "rexi-api/internal/domain/service"
	wfmodel "rexi-api/internal/workflow/model"
	wfnode "rexi-api/internal/workflow/node"
	workflowport "rexi-api/internal/workflow/port"
	workflowprompt "rexi-api/internal/workflow/prompt"
	"rexi-api/pkg/logger"
)

// Operation 标签，用于 LLM 指标与追踪
const (
	OpAnalyze = "analyze"
	OpPoetry  = "poetry"
	OpRewrite = "rewrite"
)

// 改写时当前文案最多带入的字符数
const maxCurrentContentRunes = 1000

type contentRequest struct {
	operation string
	prompt    workflowprompt.PromptID
	target    wfmodel.LLMTarget
	vars      map[string]any
}

type contentState struct {
	req      *contentRequest
	messages []*schema.Message
	out      *schema.Message
}

// ContentChain 执行分析、诗词、改写三类 JSON 输出的 LLM 调用
type ContentChain struct {
	factory  workflowport.ChatModelFactory
	registry *workflowprompt.Registry

	chainOnce sync.Once
	chain     compose.Runnable[*contentRequest, *schema.Message]
	chainErr  error
}

// NewContentChain 创建内容链
func NewContentChain(factory workflowport.ChatModelFactory, registry *workflowprompt.Registry) *ContentChain {
	if registry == nil {
		registry = workflowprompt.NewRegistry()
	}
	return &ContentChain{factory: factory, registry: registry}
}

// Analyze 生成图片提示词与小红书文案
func (c *ContentChain) Analyze(ctx context.Context, in *wfmodel.AnalyzeInput) (*schema.Message, error) {
	if in == nil || strings.TrimSpace(in.Text) == "" {
		return nil, fmt.Errorf("text is required")
	}
	return c.invoke(ctx, &contentRequest{
		operation: OpAnalyze,
		prompt:    workflowprompt.PromptAnalyzeV1,
		target:    in.LLMTarget,
		vars: map[string]any{
			"text":  strings.TrimSpace(in.Text),
			"style": strings.TrimSpace(in.Style),
		},
	})
}

// Poetry 识别并逐句解析古诗词
func (c *ContentChain) Poetry(ctx context.Context, in *wfmodel.PoetryInput) (*schema.Message, error) {
	if in == nil || strings.TrimSpace(in.Text) == "" {
		return nil, fmt.Errorf("text is required")
	}
	return c.invoke(ctx, &contentRequest{
		operation: OpPoetry,
		prompt:    workflowprompt.PromptPoetryV1,
		target:    in.LLMTarget,
		vars:      map[string]any{"text": strings.TrimSpace(in.Text)},
	})
}

// Rewrite 基于原始素材重写文案
func (c *ContentChain) Rewrite(ctx context.Context, in *wfmodel.RewriteInput) (*schema.Message, error) {
	if in == nil || strings.TrimSpace(in.OriginalText) == "" {
		return nil, fmt.Errorf("original text is required")
	}
	return c.invoke(ctx, &contentRequest{
		operation: OpRewrite,
		prompt:    workflowprompt.PromptRewriteV1,
		target:    in.LLMTarget,
		vars: map[string]any{
			"original_text":   strings.TrimSpace(in.OriginalText),
			"current_content": wfnode.TruncateByRunes(strings.TrimSpace(in.CurrentContent), maxCurrentContentRunes),
		},
	})
}

func (c *ContentChain) invoke(ctx context.Context, req *contentRequest) (*schema.Message, error) {
	if c == nil || c.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	chain, err := c.getChain()
	if err != nil {
		return nil, err
	}
	return chain.Invoke(ctx, req)
}

func (c *ContentChain) getChain() (compose.Runnable[*contentRequest, *schema.Message], error) {
	c.chainOnce.Do(func() {
		c.chain, c.chainErr = c.buildChain(context.Background())
	})
	return c.chain, c.chainErr
}

func (c *ContentChain) buildChain(ctx context.Context) (compose.Runnable[*contentRequest, *schema.Message], error) {
	chain := compose.NewChain[*contentRequest, *schema.Message]()

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, req *contentRequest) (*contentState, error) {
			tpl, err := c.registry.ChatTemplate(req.prompt)
			if err != nil {
				return nil, err
			}
			msgs, err := tpl.Format(ctx, req.vars)
			if err != nil {
				return nil, err
			}
			return &contentState{req: req, messages: msgs}, nil
		}),
		compose.WithNodeName("content.template"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, st *contentState) (*contentState, error) {
			target := st.req.target
			ctx = llmctx.WithOperation(ctx, st.req.operation)
			ctx = llmctx.WithProvider(ctx, target.Provider)

			chatModel, err := c.factory.Get(ctx, target.Provider, target.Model)
			if err != nil {
				return nil, err
			}

			out, err := chatModel.Generate(ctx, st.messages, buildModelOptions(target, true)...)
			if err != nil && wfnode.IsResponseFormatUnsupportedError(err) {
				logger.Warn(ctx, "llm json mode not supported, fallback to prompt-only",
					"operation", st.req.operation,
					"provider", target.Provider,
					"model", target.Model,
					"error", err.Error(),
				)
				out, err = chatModel.Generate(ctx, st.messages, buildModelOptions(target, false)...)
			}
			if err != nil {
				return nil, err
			}
			if out == nil {
				return nil, fmt.Errorf("empty llm response")
			}
			st.out = out
			return st, nil
		}),
		compose.WithNodeName("content.llm"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, st *contentState) (*schema.Message, error) {
			return st.out, nil
		}),
		compose.WithNodeName("content.finalize"),
	)

	return chain.Compile(ctx, compose.WithGraphName("content_chain"))
}

func buildModelOptions(target wfmodel.LLMTarget, jsonMode bool) []model.Option {
	opts := make([]model.Option, 0, 2)
	if m := strings.TrimSpace(target.Model); m != "" {
		opts = append(opts, model.WithModel(m))
	}
	if jsonMode {
		opts = append(opts, openaiopts.WithExtraFields(map[string]any{
			"response_format": map[string]any{"type": "json_object"},
		}))
	}
	return opts
}
