// Package llm 封装 LLM 提供商客户端
package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"rexi-api/internal/config"
)

// EinoFactory 管理多个 Eino ChatModel 客户端实例，按 provider + model 缓存
type EinoFactory struct {
	config *config.LLMConfig
	models map[string]model.BaseChatModel
	mu     sync.RWMutex
}

// NewEinoFactory 创建 Eino LLM 工厂
func NewEinoFactory(cfg *config.Config) *EinoFactory {
	return &EinoFactory{
		config: &cfg.LLM,
		models: make(map[string]model.BaseChatModel),
	}
}

// Provider 返回提供商配置，name 为空时使用默认提供商
func (f *EinoFactory) Provider(name string) (string, config.ProviderConfig, bool) {
	if name == "" {
		name = f.config.DefaultProvider
	}
	p, ok := f.config.Providers[name]
	return name, p, ok
}

// Configured 默认提供商是否配置了 API Key
func (f *EinoFactory) Configured() bool {
	_, p, ok := f.Provider("")
	return ok && strings.TrimSpace(p.APIKey) != ""
}

// Get 获取指定提供商的 ChatModel，modelID 为空时使用配置中的模型
func (f *EinoFactory) Get(ctx context.Context, name, modelID string) (model.BaseChatModel, error) {
	name, providerCfg, ok := f.Provider(name)
	if !ok {
		return nil, fmt.Errorf("provider %s not found in LLM config", name)
	}
	if modelID == "" {
		modelID = providerCfg.Model
	}
	key := name + "/" + modelID

	f.mu.RLock()
	m, ok := f.models[key]
	f.mu.RUnlock()
	if ok {
		return m, nil
	}

	// 惰性加载
	f.mu.Lock()
	defer f.mu.Unlock()

	if m, ok = f.models[key]; ok {
		return m, nil
	}

	cfg := &openai.ChatModelConfig{
		APIKey:  providerCfg.APIKey,
		BaseURL: providerCfg.BaseURL,
		Model:   modelID,
		Timeout: providerCfg.Timeout,
	}
	if providerCfg.MaxTokens > 0 {
		cfg.MaxTokens = &providerCfg.MaxTokens
	}
	if providerCfg.Temperature > 0 {
		t := float32(providerCfg.Temperature)
		cfg.Temperature = &t
	}

	chatModel, err := openai.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create eino chat model for %s: %w", key, err)
	}

	f.models[key] = chatModel
	return chatModel, nil
}
