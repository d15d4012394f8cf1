package session

import (
	"context"

	"rexi-api/internal/domain/entity"
	"rexi-api/pkg/logger"
)

// CleanCreationPath 替换作品后回到的空白创作页
const CleanCreationPath = "/generate"

// ReplaceResult 新建作品请求的结果
type ReplaceResult struct {
	NeedsConfirm bool              `json:"needsConfirm"`
	Redirect     string            `json:"redirect,omitempty"`
	State        entity.DraftState `json:"state"`
}

// Coordinator 在开始新作品前保护进行中的作品
type Coordinator struct {
	ctrl  *Controller
	tasks *TaskManager
	store *DraftStore
	clock Clock
}

// NewCoordinator 创建作品替换协调器
func NewCoordinator(ctrl *Controller, tasks *TaskManager, store *DraftStore, clock Clock) *Coordinator {
	return &Coordinator{ctrl: ctrl, tasks: tasks, store: store, clock: clock}
}

// NeedsConfirm 有进行中的内容且已绑定作品身份
func (c *Coordinator) NeedsConfirm() bool {
	return c.ctrl.State().HasActiveWork() && c.ctrl.Identity() != ""
}

// RequestNewWork 需要确认时只返回提示，否则直接重置
func (c *Coordinator) RequestNewWork(ctx context.Context) ReplaceResult {
	if c.NeedsConfirm() {
		return ReplaceResult{NeedsConfirm: true, State: c.ctrl.State()}
	}
	return c.Reset(ctx)
}

// ConfirmReplace 先暂存当前作品，再清空会话
func (c *Coordinator) ConfirmReplace(ctx context.Context) ReplaceResult {
	c.tasks.StopPolling()
	var redirect string
	state := c.ctrl.Reset(func(prev entity.DraftState, editID string) {
		target := prev.CurrentWorkID
		if target == "" {
			target = editID
		}
		if target != "" {
			paused := prev.Clone()
			paused.SchemaVersion = entity.DraftSchemaVersion
			paused.WorkID = target
			paused.CurrentWorkID = target
			paused.SavedAt = c.clock.Now().UnixMilli()
			c.store.SetPausedWork(ctx, target, paused)
			logger.Info(ctx, "paused work before replace", "work_id", target)
		}
		c.store.Remove(ctx, RecoveryKey, GenericDraftKey, PointerKey, WorkSnapshotKey)
		if editID != "" {
			redirect = CleanCreationPath
		}
	})
	return ReplaceResult{Redirect: redirect, State: state}
}

// Reset 无需确认的重置，同时删除当前作品的草稿键
func (c *Coordinator) Reset(ctx context.Context) ReplaceResult {
	c.tasks.StopPolling()
	var redirect string
	state := c.ctrl.Reset(func(prev entity.DraftState, editID string) {
		keys := []string{RecoveryKey, GenericDraftKey, PointerKey, WorkSnapshotKey}
		target := prev.CurrentWorkID
		if target == "" {
			target = editID
		}
		if target != "" {
			keys = append(keys, DraftKeyFor(target))
		}
		c.store.Remove(ctx, keys...)
		if editID != "" {
			redirect = CleanCreationPath
		}
	})
	return ReplaceResult{Redirect: redirect, State: state}
}
