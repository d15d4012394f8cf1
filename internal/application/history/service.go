// Package history 实现作品历史的查询、编辑和批量同步
package history

import (
	"context"
	"errors"

	"rexi-api/internal/domain/entity"
	"rexi-api/internal/domain/repository"
	apperrors "rexi-api/pkg/errors"
	"rexi-api/pkg/logger"
)

// Service 作品历史服务
type Service struct {
	repo repository.HistoryRepository
	tx   repository.Transactor
}

// NewService 创建作品历史服务
func NewService(repo repository.HistoryRepository, tx repository.Transactor) *Service {
	return &Service{repo: repo, tx: tx}
}

// CopyPatch 文案编辑，nil 字段保持不变
type CopyPatch struct {
	XhsTitle   *string `json:"xhsTitle"`
	XhsContent *string `json:"xhsContent"`
}

func notFound(err error) error {
	if errors.Is(err, repository.ErrHistoryNotFound) {
		return apperrors.New(apperrors.CodeNotFound, "Not found")
	}
	return apperrors.Wrap(err, apperrors.CodeDatabaseError, "history storage error")
}

// List 分页列出作品，按创建时间倒序
func (s *Service) List(ctx context.Context, skip, take int) (*repository.PagedResult[*entity.History], error) {
	page, err := s.repo.List(ctx, repository.NewPagination(skip, take))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "Failed to fetch history")
	}
	return page, nil
}

// Clear 清空全部作品
func (s *Service) Clear(ctx context.Context) error {
	n, err := s.repo.Clear(ctx)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "Failed to clear history")
	}
	logger.Info(ctx, "history cleared", "deleted", n)
	return nil
}

// Get 获取单个作品
func (s *Service) Get(ctx context.Context, id string) (*entity.History, error) {
	h, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return h, nil
}

// Delete 删除单个作品
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return notFound(err)
	}
	return nil
}

// PatchCopy 编辑作品文案
func (s *Service) PatchCopy(ctx context.Context, id string, p CopyPatch) (*entity.History, error) {
	h, err := s.repo.Update(ctx, id, entity.HistoryPatch{XhsTitle: p.XhsTitle, XhsContent: p.XhsContent})
	if err != nil {
		return nil, notFound(err)
	}
	return h, nil
}
