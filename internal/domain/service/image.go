package service

import (
	"context"
)

// ImageJob 一次生图请求，TaskID 指向需要回写结果的作品记录
type ImageJob struct {
	TaskID       string `json:"taskId"`
	Prompt       string `json:"prompt"`
	OriginalText string `json:"originalText,omitempty"`
	XhsTitle     string `json:"xhsTitle,omitempty"`
	XhsContent   string `json:"xhsContent,omitempty"`
}

// RenderedImage 生图结果
type RenderedImage struct {
	URL       string
	ModelUsed string
	Warning   string
}

// ImageRenderer 根据提示词生成图片并返回可访问地址
type ImageRenderer interface {
	Render(ctx context.Context, prompt string) (*RenderedImage, error)
}

// ImageDispatcher 投递生图任务，结果只能通过轮询作品记录观察
type ImageDispatcher interface {
	Dispatch(ctx context.Context, job ImageJob) error
}
