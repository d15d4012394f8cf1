package imagegen

import (
	"context"
	"errors"
	"time"

	"rexi-api/internal/domain/entity"
	"rexi-api/internal/domain/repository"
	"rexi-api/internal/domain/service"
	"rexi-api/internal/infrastructure/messaging"
	"rexi-api/pkg/logger"
	"rexi-api/pkg/metrics"
)

// Processor 执行生图任务并把终态写回作品记录
type Processor struct {
	renderer  service.ImageRenderer
	histories repository.HistoryRepository
}

// NewProcessor 创建任务处理器
func NewProcessor(renderer service.ImageRenderer, histories repository.HistoryRepository) *Processor {
	return &Processor{renderer: renderer, histories: histories}
}

// Handle 渲染图片并更新记录为 COMPLETED，渲染失败时更新为 FAILED。
// 渲染失败不会返回错误，任务不自动重试；只有记录写回失败才返回错误。
func (p *Processor) Handle(ctx context.Context, job service.ImageJob) error {
	ctx = logger.WithContext(ctx, logger.TaskIDKey, job.TaskID)
	start := time.Now()

	img, err := p.renderer.Render(ctx, job.Prompt)
	if err != nil {
		metrics.ImageRenderDuration.WithLabelValues("unknown", "error").Observe(time.Since(start).Seconds())
		logger.Error(ctx, "image render failed", err)
		return p.update(ctx, job.TaskID, entity.StatusPatch(entity.TaskStatusFailed))
	}
	metrics.ImageRenderDuration.WithLabelValues(img.ModelUsed, "success").Observe(time.Since(start).Seconds())
	if img.Warning != "" {
		logger.Warn(ctx, "image rendered with warning", "warning", img.Warning)
	}

	completed := entity.TaskStatusCompleted
	prompt := job.Prompt
	patch := entity.HistoryPatch{
		Status:          &completed,
		ImageURL:        &img.URL,
		Style:           entity.Optional(img.ModelUsed),
		GeneratedPrompt: &prompt,
		XhsTitle:        entity.Optional(job.XhsTitle),
		XhsContent:      entity.Optional(job.XhsContent),
		OriginalText:    entity.Optional(job.OriginalText),
	}
	if err := p.update(ctx, job.TaskID, patch); err != nil {
		return err
	}
	logger.Info(ctx, "image task completed", "model", img.ModelUsed, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (p *Processor) update(ctx context.Context, taskID string, patch entity.HistoryPatch) error {
	_, err := p.histories.Update(ctx, taskID, patch)
	if errors.Is(err, repository.ErrHistoryNotFound) {
		// 任务执行期间记录已被删除
		logger.Warn(ctx, "image task record gone, result dropped")
		return nil
	}
	return err
}

// MessageHandler 把处理器适配为队列消费者的消息处理函数
func (p *Processor) MessageHandler() messaging.MessageHandler {
	return func(ctx context.Context, msg *messaging.Message) error {
		var job service.ImageJob
		if err := msg.UnmarshalPayload(&job); err != nil {
			return err
		}
		return p.Handle(ctx, job)
	}
}
