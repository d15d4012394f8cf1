// Package session 实现生成会话状态机：草稿身份解析、防抖持久化、
// 生成任务生命周期与作品替换。
package session

import "strings"

// 草稿存储键。各组件写入互不重叠的命名空间。
const (
	// GenericDraftKey 未关联作品的草稿
	GenericDraftKey = "rexi:draft-state"
	// PointerKey 最近一次写入的草稿键
	PointerKey = "rexi:generate:last-state-key"
	// RecoveryKey 等待完成的任务 ID，刷新后据此恢复轮询
	RecoveryKey = "rexi:generating-task-id"
	// WorkSnapshotKey 作品列表跳转编辑时写入的轻量快照
	WorkSnapshotKey = "rexi:edit-work"

	editStatePrefix  = "rexi:edit-state:"
	pausedWorkPrefix = "rexi:paused-work:"
)

// DraftKeyFor 返回作品对应的草稿键，id 为空时返回未关联草稿键
func DraftKeyFor(id string) string {
	if id == "" {
		return GenericDraftKey
	}
	return editStatePrefix + id
}

// PausedWorkKey 返回被替换作品的暂存键
func PausedWorkKey(id string) string {
	return pausedWorkPrefix + id
}

// isDraftKey 指针只允许指向草稿键
func isDraftKey(key string) bool {
	return key == GenericDraftKey || (strings.HasPrefix(key, editStatePrefix) && len(key) > len(editStatePrefix))
}
