package session

import (
	"context"
	"encoding/json"
	"errors"

	"rexi-api/internal/domain/entity"
	"rexi-api/internal/domain/repository"
	"rexi-api/pkg/logger"
	"rexi-api/pkg/metrics"
)

// DraftStore 浏览会话范围内的草稿存储
// 所有操作尽力而为：底层错误只记录日志，不返回给调用方。
type DraftStore struct {
	kv    repository.SessionKV
	scope string
}

// NewDraftStore 创建绑定到指定浏览会话的草稿存储
func NewDraftStore(kv repository.SessionKV, scope string) *DraftStore {
	return &DraftStore{kv: kv, scope: scope}
}

// Scope 返回浏览会话 ID
func (s *DraftStore) Scope() string {
	return s.scope
}

// Get 读取草稿；不存在、无法解析或版本不一致时返回 false
func (s *DraftStore) Get(ctx context.Context, key string) (entity.DraftState, bool) {
	raw, ok := s.getRaw(ctx, key)
	if !ok {
		return entity.DraftState{}, false
	}
	var d entity.DraftState
	if err := json.Unmarshal(raw, &d); err != nil {
		logger.Debug(ctx, "discard malformed draft", "key", key, "error", err.Error())
		return entity.DraftState{}, false
	}
	if d.SchemaVersion != entity.DraftSchemaVersion {
		logger.Debug(ctx, "discard draft with mismatched schema", "key", key, "version", d.SchemaVersion)
		return entity.DraftState{}, false
	}
	d.Normalize()
	return d, true
}

// Set 写入草稿
func (s *DraftStore) Set(ctx context.Context, key string, d entity.DraftState) bool {
	raw, err := json.Marshal(d)
	if err != nil {
		logger.Warn(ctx, "encode draft failed", "key", key, "error", err.Error())
		return false
	}
	return s.setRaw(ctx, key, raw)
}

// Remove 删除若干键
func (s *DraftStore) Remove(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := s.kv.Del(ctx, s.scope, keys...); err != nil {
		logger.Warn(ctx, "draft store remove failed", "keys", keys, "error", err.Error())
	}
}

// Pointer 返回最近写入的草稿键，无效时返回空串
func (s *DraftStore) Pointer(ctx context.Context) string {
	raw, ok := s.getRaw(ctx, PointerKey)
	if !ok || !isDraftKey(string(raw)) {
		return ""
	}
	return string(raw)
}

// SetPointer 更新指针
func (s *DraftStore) SetPointer(ctx context.Context, key string) {
	s.setRaw(ctx, PointerKey, []byte(key))
}

// RecoveryTask 返回待恢复轮询的任务 ID
func (s *DraftStore) RecoveryTask(ctx context.Context) string {
	raw, ok := s.getRaw(ctx, RecoveryKey)
	if !ok {
		return ""
	}
	return string(raw)
}

// SetRecoveryTask 记录待恢复轮询的任务 ID
func (s *DraftStore) SetRecoveryTask(ctx context.Context, taskID string) {
	s.setRaw(ctx, RecoveryKey, []byte(taskID))
}

// ClearRecoveryTask 清除恢复槽
func (s *DraftStore) ClearRecoveryTask(ctx context.Context) {
	s.Remove(ctx, RecoveryKey)
}

// SetPausedWork 暂存被替换的作品
func (s *DraftStore) SetPausedWork(ctx context.Context, workID string, d entity.DraftState) {
	s.Set(ctx, PausedWorkKey(workID), d)
}

// PausedWork 读取暂存的作品
func (s *DraftStore) PausedWork(ctx context.Context, workID string) (entity.DraftState, bool) {
	return s.Get(ctx, PausedWorkKey(workID))
}

// WorkSnapshot 读取作品快照
func (s *DraftStore) WorkSnapshot(ctx context.Context) (entity.WorkSnapshot, bool) {
	raw, ok := s.getRaw(ctx, WorkSnapshotKey)
	if !ok {
		return entity.WorkSnapshot{}, false
	}
	var w entity.WorkSnapshot
	if err := json.Unmarshal(raw, &w); err != nil || w.ID == "" {
		return entity.WorkSnapshot{}, false
	}
	return w, true
}

// SetWorkSnapshot 写入作品快照
func (s *DraftStore) SetWorkSnapshot(ctx context.Context, w entity.WorkSnapshot) {
	raw, err := json.Marshal(w)
	if err != nil {
		logger.Warn(ctx, "encode work snapshot failed", "error", err.Error())
		return
	}
	s.setRaw(ctx, WorkSnapshotKey, raw)
}

func (s *DraftStore) getRaw(ctx context.Context, key string) ([]byte, bool) {
	raw, err := s.kv.Get(ctx, s.scope, key)
	if err != nil {
		if !errors.Is(err, repository.ErrKeyNotFound) {
			logger.Warn(ctx, "draft store read failed", "key", key, "error", err.Error())
		}
		return nil, false
	}
	return raw, true
}

func (s *DraftStore) setRaw(ctx context.Context, key string, raw []byte) bool {
	if err := s.kv.Set(ctx, s.scope, key, raw); err != nil {
		metrics.DraftSavesTotal.WithLabelValues("error").Inc()
		logger.Warn(ctx, "draft store write failed", "key", key, "error", err.Error())
		return false
	}
	return true
}
