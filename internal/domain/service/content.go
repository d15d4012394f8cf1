// Package service 定义跨层的领域服务契约
package service

import (
	"context"

	"rexi-api/internal/domain/entity"
)

// ContentGenerator 内容生成服务
// style 非空时为重绘：只返回三个风格变体，文案字段必须为空。
type ContentGenerator interface {
	Analyze(ctx context.Context, text, style string) (*entity.Analysis, error)
	AnalyzePoetry(ctx context.Context, text string) (*entity.PoetryAnalysis, error)
	Rewrite(ctx context.Context, originalText, currentContent string) (*entity.Copy, error)
}
