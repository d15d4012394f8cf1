package repository

import (
	"context"
	"errors"

	"rexi-api/internal/domain/entity"
)

var (
	// ErrHistoryNotFound 作品记录不存在
	ErrHistoryNotFound = errors.New("history not found")
	// ErrVersionConflict 乐观锁版本不一致
	ErrVersionConflict = errors.New("history version conflict")
)

// HistoryRepository 作品历史仓储接口
type HistoryRepository interface {
	// Create 创建记录（ID 由仓储生成并回填）
	Create(ctx context.Context, h *entity.History) error

	// GetByID 根据 ID 获取记录，不存在返回 ErrHistoryNotFound
	GetByID(ctx context.Context, id string) (*entity.History, error)

	// Update 部分更新并返回更新后的记录，不存在返回 ErrHistoryNotFound
	Update(ctx context.Context, id string, patch entity.HistoryPatch) (*entity.History, error)

	// Delete 删除记录，不存在返回 ErrHistoryNotFound
	Delete(ctx context.Context, id string) error

	// DeleteWithVersion 仅当版本号一致时删除，不一致返回 ErrVersionConflict
	DeleteWithVersion(ctx context.Context, id string, version int) error

	// List 按创建时间倒序分页
	List(ctx context.Context, pagination Pagination) (*PagedResult[*entity.History], error)

	// Clear 删除全部记录，返回删除数量
	Clear(ctx context.Context) (int64, error)
}
