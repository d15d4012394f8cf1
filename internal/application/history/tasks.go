package history

import (
	"context"
	"errors"

	"rexi-api/internal/application/session"
	"rexi-api/internal/domain/entity"
	"rexi-api/internal/domain/repository"
	apperrors "rexi-api/pkg/errors"
)

// TaskStore 把作品仓储适配为会话使用的任务存储
type TaskStore struct {
	repo repository.HistoryRepository
}

var _ session.TaskStore = (*TaskStore)(nil)

// NewTaskStore 创建任务存储适配器
func NewTaskStore(repo repository.HistoryRepository) *TaskStore {
	return &TaskStore{repo: repo}
}

// CreateTask 创建 PENDING 任务
func (s *TaskStore) CreateTask(ctx context.Context, in session.CreateTaskInput) (*entity.History, error) {
	h := entity.NewHistory(in.OriginalText, in.Prompt, in.Style)
	h.XhsTitle = entity.Optional(in.XhsTitle)
	h.XhsContent = entity.Optional(in.XhsContent)
	if err := s.repo.Create(ctx, h); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to create task")
	}
	return h, nil
}

// GetTask 查询任务，不存在返回 CodeTaskNotFound
func (s *TaskStore) GetTask(ctx context.Context, id string) (*entity.History, error) {
	h, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, taskError(err)
	}
	return h, nil
}

// UpdateTask 部分更新任务
func (s *TaskStore) UpdateTask(ctx context.Context, id string, patch entity.HistoryPatch) (*entity.History, error) {
	h, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return nil, taskError(err)
	}
	return h, nil
}

func taskError(err error) error {
	if errors.Is(err, repository.ErrHistoryNotFound) {
		return apperrors.Wrap(err, apperrors.CodeTaskNotFound, "task not found")
	}
	return apperrors.Wrap(err, apperrors.CodeDatabaseError, "task storage error")
}
