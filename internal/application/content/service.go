// Package content 实现文本分析、诗词解析和文案改写
package content

import (
	"context"
	"fmt"
	"strings"

	"rexi-api/internal/domain/entity"
	wfchain "rexi-api/internal/workflow/chain"
	wfmodel "rexi-api/internal/workflow/model"
	wfnode "rexi-api/internal/workflow/node"
	workflowport "rexi-api/internal/workflow/port"
	apperrors "rexi-api/pkg/errors"
	"rexi-api/pkg/logger"
	"rexi-api/pkg/metrics"
)

// 演示模式与降级时返回的固定内容
const (
	demoAnalyzeTitle   = "✨ 灵感绘图 (演示模式)"
	demoAnalyzeContent = "由于未配置 API Key，当前为演示模式。\n\nAI 已为你生成了一张基于关键词的艺术画作。\n\n💡 **提示**: 配置 API Key 后可体验完整的 AI 文案生成与深度分析功能。"

	noModelPrompt  = "(Mock/Fallback) Xiaohongshu style photo, soft natural lighting, pastel colors, high resolution, 8k, photorealistic, lifestyle vibe"
	noModelWarning = "AI 连接失败: 无可用文本模型，已切换到演示模式"
	noModelTitle   = "⚠️ 模式切换"
	noModelContent = "由于无法连接到 AI 模型，已自动切换至离线演示模式。\n\n这可能由网络问题或配额限制引起。请稍后重试。"

	failedPrompt = "(Mock/Fallback) Classical oil painting, dramatic lighting, masterpiece, 8k, highly detailed, expressive style"
	failedTitle  = "⚠️ 生成中断"

	unparsedTitle   = "✨ 小红书美图生成"
	unparsedContent = "AI 未能生成有效文案，请重试。"

	unknownSourceTitle = "未知来源"

	demoPoetryTitle     = "⚠️ 演示模式"
	demoPoetryContent   = "未配置 API Key，请联系管理员。"
	unparsedPoetryTitle = "解析失败"
	unparsedPoetryBody  = "AI 未能正确分析诗词，请重试。"

	demoRewriteTitle   = "✨ 演示模式 (无 API Key)"
	demoRewriteContent = "由于未配置 API Key，无法使用 AI 重写功能。\n\n请在后台配置 API Key 以体验完整功能。"

	guessedRewriteTitle = "AI 重写文案"
	untitled            = "Untitled"
)

// Service 内容生成服务
type Service struct {
	chain    *wfchain.ContentChain
	factory  workflowport.ChatModelFactory
	chooser  *ModelChooser
	provider string
}

// NewService 创建内容生成服务；provider 为空时使用工厂的默认提供商
func NewService(chain *wfchain.ContentChain, factory workflowport.ChatModelFactory, chooser *ModelChooser, provider string) *Service {
	return &Service{
		chain:    chain,
		factory:  factory,
		chooser:  chooser,
		provider: provider,
	}
}

func (s *Service) demoMode() bool {
	return s.factory == nil || !s.factory.Configured()
}

func (s *Service) chooseModel(ctx context.Context) (string, error) {
	if s.chooser == nil {
		return "", ErrNoModel
	}
	return s.chooser.Choose(ctx)
}

// Analyze 分析文本，生成提示词和文案；模型不可用或调用失败时降级为示例结果
func (s *Service) Analyze(ctx context.Context, text, style string) (*entity.Analysis, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.New(apperrors.CodeInvalidParam, "缺少 text")
	}
	style = strings.TrimSpace(style)

	result, outcome := s.analyze(ctx, text, style)
	metrics.ContentAnalysisTotal.WithLabelValues(wfchain.OpAnalyze, outcome).Inc()
	if style != "" {
		result.XhsTitle = ""
		result.XhsContent = ""
	}
	return result, nil
}

func (s *Service) analyze(ctx context.Context, text, style string) (*entity.Analysis, string) {
	if s.demoMode() {
		return &entity.Analysis{
			Prompt:     fmt.Sprintf("(Mock) Artistic oil painting of %s, expressive brushstrokes, dramatic lighting, masterpiece, 8k, surreal atmosphere", text),
			XhsTitle:   demoAnalyzeTitle,
			XhsContent: demoAnalyzeContent,
		}, "demo"
	}

	modelID, err := s.chooseModel(ctx)
	if err != nil {
		logger.Warn(ctx, "no text model available for analyze", "error", err.Error())
		return &entity.Analysis{
			Prompt:     noModelPrompt,
			Warning:    noModelWarning,
			XhsTitle:   noModelTitle,
			XhsContent: noModelContent,
		}, "fallback"
	}

	msg, err := s.chain.Analyze(ctx, &wfmodel.AnalyzeInput{
		LLMTarget: wfmodel.LLMTarget{Provider: s.provider, Model: modelID},
		Text:      text,
		Style:     style,
	})
	if err != nil {
		logger.Error(ctx, "analyze llm call failed", err, "model", modelID)
		reason := err.Error()
		return &entity.Analysis{
			Prompt:     failedPrompt,
			Warning:    fmt.Sprintf("AI 连接失败: %s，已切换到演示模式", reason),
			XhsTitle:   failedTitle,
			XhsContent: fmt.Sprintf("我们在连接 AI 时遇到了问题 (%s)。\n\n已为您展示默认风格的生成效果。请检查网络设置或 API Key 配置。", reason),
			ModelUsed:  modelID,
		}, "error"
	}

	raw := msg.Content
	out, err := wfnode.DecodeJSONObject[wfmodel.AnalyzeOutput](raw)
	if err != nil {
		logger.Warn(ctx, "analyze output is not json", "model", modelID, "error", err.Error())
		return &entity.Analysis{
			Prompt:     raw,
			XhsTitle:   unparsedTitle,
			XhsContent: unparsedContent,
			ModelUsed:  modelID,
		}, "unparsed"
	}

	result := &entity.Analysis{
		Prompt:            out.ImagePrompt,
		ImagePrompts:      out.ImagePrompts,
		XhsTitle:          out.XhsTitle,
		XhsContent:        out.XhsContent,
		Citations:         out.Citations,
		VerificationNotes: out.VerificationNotes,
		GroundingSources:  groundingSources(out.Sources),
		ModelUsed:         modelID,
	}
	if result.Prompt == "" && len(out.ImagePrompts) > 0 {
		result.Prompt = out.ImagePrompts[0].Compose()
	}
	if result.Prompt == "" {
		result.Prompt = raw
	}
	return result, "success"
}

// groundingSources 丢弃没有链接的来源，缺少标题时补默认值
func groundingSources(in []entity.GroundingSource) []entity.GroundingSource {
	var out []entity.GroundingSource
	for _, src := range in {
		src.URL = strings.TrimSpace(src.URL)
		if src.URL == "" {
			continue
		}
		if strings.TrimSpace(src.Title) == "" {
			src.Title = unknownSourceTitle
		}
		out = append(out, src)
	}
	return out
}

// AnalyzePoetry 判断文本是否为古诗词并逐句解析，最多保留 entity.MaxPoemVerses 句
func (s *Service) AnalyzePoetry(ctx context.Context, text string) (*entity.PoetryAnalysis, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.New(apperrors.CodeEmptyInput, "请输入古诗词内容")
	}
	if s.demoMode() {
		metrics.ContentAnalysisTotal.WithLabelValues(wfchain.OpPoetry, "demo").Inc()
		return &entity.PoetryAnalysis{XhsTitle: demoPoetryTitle, XhsContent: demoPoetryContent}, nil
	}

	modelID, err := s.chooseModel(ctx)
	if err != nil {
		metrics.ContentAnalysisTotal.WithLabelValues(wfchain.OpPoetry, "error").Inc()
		return nil, apperrors.Wrap(err, apperrors.CodeLLMProviderError, "分析失败: "+err.Error())
	}

	msg, err := s.chain.Poetry(ctx, &wfmodel.PoetryInput{
		LLMTarget: wfmodel.LLMTarget{Provider: s.provider, Model: modelID},
		Text:      text,
	})
	if err != nil {
		logger.Error(ctx, "poetry llm call failed", err, "model", modelID)
		metrics.ContentAnalysisTotal.WithLabelValues(wfchain.OpPoetry, "error").Inc()
		return nil, apperrors.Wrap(err, apperrors.CodeLLMCallFailed, "分析失败: "+err.Error())
	}

	out, err := wfnode.DecodeJSONObject[entity.PoetryAnalysis](msg.Content)
	if err != nil {
		logger.Warn(ctx, "poetry output is not json", "model", modelID, "error", err.Error())
		metrics.ContentAnalysisTotal.WithLabelValues(wfchain.OpPoetry, "unparsed").Inc()
		return &entity.PoetryAnalysis{XhsTitle: unparsedPoetryTitle, XhsContent: unparsedPoetryBody, ModelUsed: modelID}, nil
	}
	if out.PoemInfo != nil && len(out.PoemInfo.Verses) > entity.MaxPoemVerses {
		out.PoemInfo.Verses = out.PoemInfo.Verses[:entity.MaxPoemVerses]
	}
	out.ModelUsed = modelID
	metrics.ContentAnalysisTotal.WithLabelValues(wfchain.OpPoetry, "success").Inc()
	return out, nil
}

// Rewrite 重写文案；originalText 为空时使用 currentContent 作为素材
func (s *Service) Rewrite(ctx context.Context, originalText, currentContent string) (*entity.Copy, error) {
	source := strings.TrimSpace(originalText)
	if source == "" {
		source = strings.TrimSpace(currentContent)
	}
	if source == "" {
		return nil, apperrors.New(apperrors.CodeInvalidParam, "Missing text context")
	}
	if s.demoMode() {
		return &entity.Copy{XhsTitle: demoRewriteTitle, XhsContent: demoRewriteContent}, nil
	}

	modelID, err := s.chooseModel(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeLLMProviderError, "Rewrite failed")
	}

	msg, err := s.chain.Rewrite(ctx, &wfmodel.RewriteInput{
		LLMTarget:      wfmodel.LLMTarget{Provider: s.provider, Model: modelID},
		OriginalText:   source,
		CurrentContent: currentContent,
	})
	if err != nil {
		logger.Error(ctx, "rewrite llm call failed", err, "model", modelID)
		return nil, apperrors.Wrap(err, apperrors.CodeLLMCallFailed, err.Error())
	}

	raw := msg.Content
	title, body := parseRewrite(ctx, raw)
	if title == "" {
		title = untitled
	}
	if body == "" {
		body = raw
	}
	return &entity.Copy{XhsTitle: title, XhsContent: body}, nil
}

func parseRewrite(ctx context.Context, raw string) (string, string) {
	out, err := wfnode.DecodeJSONObject[wfmodel.RewriteOutput](raw)
	if err == nil {
		return out.XhsTitle, out.XhsContent
	}
	logger.Warn(ctx, "rewrite output is not json, guessing title", "error", err.Error())
	if title, body, ok := wfnode.SplitTitleBody(raw); ok {
		return title, body
	}
	return guessedRewriteTitle, raw
}
