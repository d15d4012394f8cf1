// Package model 定义工作流层的输入输出结构
package model

import "rexi-api/internal/domain/entity"

// LLMTarget 指定本次调用的提供商与模型，均可为空
type LLMTarget struct {
	Provider string
	Model    string
}

// AnalyzeInput 文本分析输入；Style 非空时为重绘
type AnalyzeInput struct {
	LLMTarget
	Text  string
	Style string
}

// PoetryInput 诗词分析输入
type PoetryInput struct {
	LLMTarget
	Text string
}

// RewriteInput 文案改写输入
type RewriteInput struct {
	LLMTarget
	OriginalText   string
	CurrentContent string
}

// AnalyzeOutput 模型返回的分析 JSON
type AnalyzeOutput struct {
	ImagePrompts      []entity.ImagePrompt     `json:"imagePrompts"`
	ImagePrompt       string                   `json:"imagePrompt"`
	XhsTitle          string                   `json:"xhsTitle"`
	XhsContent        string                   `json:"xhsContent"`
	Citations         []string                 `json:"citations"`
	VerificationNotes string                   `json:"verificationNotes"`
	Sources           []entity.GroundingSource `json:"sources"`
}

// RewriteOutput 模型返回的改写 JSON
type RewriteOutput struct {
	XhsTitle   string `json:"xhsTitle"`
	XhsContent string `json:"xhsContent"`
}
