package port

import (
	"context"

	"github.com/cloudwego/eino/components/model"
)

// ChatModelFactory 定义工作流层对 LLM ChatModel 的最小依赖（port）。
// modelID 为空时由实现方使用提供商的默认模型。
type ChatModelFactory interface {
	Get(ctx context.Context, provider, modelID string) (model.BaseChatModel, error)
	Configured() bool
}

// ModelLister 列出提供商当前可用的模型 ID
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}
