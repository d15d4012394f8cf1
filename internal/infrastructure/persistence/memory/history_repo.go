// Package memory 提供进程内的仓储实现，用于未配置数据库的本地运行与测试
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"rexi-api/internal/domain/entity"
	"rexi-api/internal/domain/repository"
)

// HistoryRepository 进程内作品历史仓储
type HistoryRepository struct {
	mu      sync.RWMutex
	records map[string]*entity.History
	txMu    sync.Mutex
	now     func() time.Time
}

// NewHistoryRepository 创建进程内作品历史仓储
func NewHistoryRepository() *HistoryRepository {
	return &HistoryRepository{
		records: make(map[string]*entity.History),
		now:     time.Now,
	}
}

func clone(h *entity.History) *entity.History {
	c := *h
	return &c
}

// Create 创建记录
func (r *HistoryRepository) Create(_ context.Context, h *entity.History) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	if h.Status == "" {
		h.Status = entity.TaskStatusPending
	}
	if h.Version == 0 {
		h.Version = 1
	}
	now := r.now()
	h.CreatedAt = now
	h.UpdatedAt = now
	r.records[h.ID] = clone(h)
	return nil
}

// GetByID 根据 ID 获取记录
func (r *HistoryRepository) GetByID(_ context.Context, id string) (*entity.History, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.records[id]
	if !ok {
		return nil, repository.ErrHistoryNotFound
	}
	return clone(h), nil
}

// Update 部分更新
func (r *HistoryRepository) Update(_ context.Context, id string, patch entity.HistoryPatch) (*entity.History, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.records[id]
	if !ok {
		return nil, repository.ErrHistoryNotFound
	}
	h.Apply(patch)
	return clone(h), nil
}

// Delete 删除记录
func (r *HistoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[id]; !ok {
		return repository.ErrHistoryNotFound
	}
	delete(r.records, id)
	return nil
}

// DeleteWithVersion 版本一致时删除
func (r *HistoryRepository) DeleteWithVersion(_ context.Context, id string, version int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.records[id]
	if !ok {
		return repository.ErrHistoryNotFound
	}
	if h.Version != version {
		return repository.ErrVersionConflict
	}
	delete(r.records, id)
	return nil
}

// List 按创建时间倒序分页
func (r *HistoryRepository) List(_ context.Context, pagination repository.Pagination) (*repository.PagedResult[*entity.History], error) {
	r.mu.RLock()
	all := make([]*entity.History, 0, len(r.records))
	for _, h := range r.records {
		all = append(all, clone(h))
	}
	r.mu.RUnlock()

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := int64(len(all))
	start := pagination.Offset()
	if start > len(all) {
		start = len(all)
	}
	end := start + pagination.Limit()
	if end > len(all) {
		end = len(all)
	}
	return repository.NewPagedResult(all[start:end], total), nil
}

// Clear 删除全部记录
func (r *HistoryRepository) Clear(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := int64(len(r.records))
	r.records = make(map[string]*entity.History)
	return n, nil
}

// WithTransaction 串行执行 fn，失败时恢复执行前的快照
func (r *HistoryRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(repository.TxKey{}).(*HistoryRepository); ok {
		return fn(ctx)
	}

	r.txMu.Lock()
	defer r.txMu.Unlock()

	r.mu.RLock()
	snapshot := make(map[string]*entity.History, len(r.records))
	for id, h := range r.records {
		snapshot[id] = clone(h)
	}
	r.mu.RUnlock()

	if err := fn(context.WithValue(ctx, repository.TxKey{}, r)); err != nil {
		r.mu.Lock()
		r.records = snapshot
		r.mu.Unlock()
		return err
	}
	return nil
}
