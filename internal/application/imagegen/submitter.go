package imagegen

import (
	"context"
	"errors"
	"strings"

	"rexi-api/internal/domain/entity"
	"rexi-api/internal/domain/repository"
	"rexi-api/internal/domain/service"
	apperrors "rexi-api/pkg/errors"
	"rexi-api/pkg/logger"
)

// GenerateRequest 生图请求
type GenerateRequest struct {
	TaskID       string
	Prompt       string
	OriginalText string
	XhsTitle     string
	XhsContent   string
}

// InitRequest 预创建任务记录的请求
type InitRequest struct {
	OriginalText string
	Prompt       string
	XhsTitle     string
	XhsContent   string
	Style        string
}

// Submitter 接收生图请求：标记任务为 PROCESSING 后投递到执行队列
type Submitter struct {
	histories repository.HistoryRepository
	queue     service.ImageDispatcher
}

// NewSubmitter 创建提交器，queue 可以是 Redis Stream 投递器或进程内执行器
func NewSubmitter(histories repository.HistoryRepository, queue service.ImageDispatcher) *Submitter {
	return &Submitter{histories: histories, queue: queue}
}

// Init 创建 PENDING 状态的任务记录
func (s *Submitter) Init(ctx context.Context, req InitRequest) (*entity.History, error) {
	h := entity.NewHistory(strings.TrimSpace(req.OriginalText), strings.TrimSpace(req.Prompt), strings.TrimSpace(req.Style))
	h.XhsTitle = entity.Optional(strings.TrimSpace(req.XhsTitle))
	h.XhsContent = entity.Optional(strings.TrimSpace(req.XhsContent))
	if err := s.histories.Create(ctx, h); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to create task")
	}
	logger.Info(ctx, "image task initialized", "task_id", h.ID)
	return h, nil
}

// Submit 提交生图任务并立即返回，结果通过轮询作品记录获得。
// 未携带 TaskID 时先创建记录。
func (s *Submitter) Submit(ctx context.Context, req GenerateRequest) (*entity.History, error) {
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		return nil, apperrors.New(apperrors.CodeMissingPrompt, "缺少 prompt")
	}

	var (
		task *entity.History
		err  error
	)
	if req.TaskID == "" {
		task, err = s.Init(ctx, InitRequest{
			OriginalText: req.OriginalText,
			Prompt:       req.Prompt,
			XhsTitle:     req.XhsTitle,
			XhsContent:   req.XhsContent,
		})
		if err != nil {
			return nil, err
		}
	}
	id := req.TaskID
	if task != nil {
		id = task.ID
	}
	ctx = logger.WithContext(ctx, logger.TaskIDKey, id)

	task, err = s.histories.Update(ctx, id, entity.StatusPatch(entity.TaskStatusProcessing))
	if errors.Is(err, repository.ErrHistoryNotFound) {
		return nil, apperrors.New(apperrors.CodeTaskNotFound, "task not found")
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to update task")
	}

	job := service.ImageJob{
		TaskID:       id,
		Prompt:       req.Prompt,
		OriginalText: strings.TrimSpace(req.OriginalText),
		XhsTitle:     strings.TrimSpace(req.XhsTitle),
		XhsContent:   strings.TrimSpace(req.XhsContent),
	}
	if err := s.queue.Dispatch(ctx, job); err != nil {
		logger.Error(ctx, "image job dispatch failed", err)
		if _, uerr := s.histories.Update(logger.Detach(ctx), id, entity.StatusPatch(entity.TaskStatusFailed)); uerr != nil {
			logger.Warn(ctx, "mark task failed after dispatch error", "error", uerr.Error())
		}
		return nil, apperrors.Wrap(err, apperrors.CodeServiceUnavailable, "服务生成失败")
	}
	return task, nil
}

// Dispatch 实现 service.ImageDispatcher，供会话内的生成流程调用
func (s *Submitter) Dispatch(ctx context.Context, job service.ImageJob) error {
	_, err := s.Submit(ctx, GenerateRequest{
		TaskID:       job.TaskID,
		Prompt:       job.Prompt,
		OriginalText: job.OriginalText,
		XhsTitle:     job.XhsTitle,
		XhsContent:   job.XhsContent,
	})
	return err
}
