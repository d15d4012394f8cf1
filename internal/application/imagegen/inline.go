package imagegen

import (
	"context"
	"sync"

	"rexi-api/internal/domain/service"
	"rexi-api/pkg/logger"
)

// InlineDispatcher 在当前进程内异步执行生图任务，用于未启用 Redis 的部署
type InlineDispatcher struct {
	processor *Processor
	wg        sync.WaitGroup
}

// NewInlineDispatcher 创建进程内执行器
func NewInlineDispatcher(processor *Processor) *InlineDispatcher {
	return &InlineDispatcher{processor: processor}
}

// Dispatch 实现 service.ImageDispatcher
func (d *InlineDispatcher) Dispatch(ctx context.Context, job service.ImageJob) error {
	bg := logger.Detach(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.processor.Handle(bg, job); err != nil {
			logger.Error(bg, "inline image job failed", err)
		}
	}()
	return nil
}

// Wait 等待所有进行中的任务结束
func (d *InlineDispatcher) Wait() {
	d.wg.Wait()
}
