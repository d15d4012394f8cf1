// Package imagegen 实现生图任务的提交、执行与结果回写
package imagegen

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"rexi-api/internal/config"
	"rexi-api/internal/domain/service"
	"rexi-api/internal/infrastructure/llm"
	"rexi-api/internal/infrastructure/storage"
	"rexi-api/pkg/logger"
	"rexi-api/pkg/tracer"
)

// 演示模式下记录在作品 style 字段中的标记
const (
	DemoModelUsed = "No API Key"
	demoWarning   = "未配置 API Key，已展示示例图片"
)

// ImageAPI 图片生成接口
type ImageAPI interface {
	GenerateImage(ctx context.Context, modelID, size, prompt string, timeout time.Duration) (*llm.GeneratedImage, error)
}

// Renderer 调用图片接口生成图片，并保存到对象存储
type Renderer struct {
	api   ImageAPI
	store storage.ObjectStore
	cfg   config.ImageConfig
	now   func() time.Time
}

// NewRenderer 创建渲染器
// api 为 nil 时进入演示模式，始终返回占位图；store 为 nil 时以 data URL 返回图片。
func NewRenderer(api ImageAPI, store storage.ObjectStore, cfg config.ImageConfig) *Renderer {
	return &Renderer{api: api, store: store, cfg: cfg, now: time.Now}
}

// Render 实现 service.ImageRenderer
func (r *Renderer) Render(ctx context.Context, prompt string) (*service.RenderedImage, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, errors.New("prompt is empty")
	}
	if r.api == nil {
		return &service.RenderedImage{URL: r.cfg.PlaceholderURL, ModelUsed: DemoModelUsed, Warning: demoWarning}, nil
	}

	ctx, span := tracer.Start(ctx, "imagegen.render")
	defer span.End()

	img, err := r.api.GenerateImage(ctx, r.cfg.Model, r.cfg.Size, prompt, r.cfg.Timeout)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}

	url, err := r.publish(ctx, img)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}
	return &service.RenderedImage{URL: url, ModelUsed: r.cfg.Model}, nil
}

func (r *Renderer) publish(ctx context.Context, img *llm.GeneratedImage) (string, error) {
	if len(img.Data) == 0 {
		if img.URL == "" {
			return "", errors.New("image has no data")
		}
		return img.URL, nil
	}
	contentType := img.ContentType
	if contentType == "" {
		contentType = "image/png"
	}
	if r.store == nil {
		return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(img.Data), nil
	}

	taskID, _ := ctx.Value(logger.TaskIDKey).(string)
	key := storage.ImageKey(taskID, contentType, r.now())
	url, err := r.store.Put(ctx, key, contentType, img.Data)
	if err != nil {
		return "", fmt.Errorf("store image %s: %w", key, err)
	}
	logger.Debug(ctx, "image stored", "key", key, "bytes", len(img.Data))
	return url, nil
}
