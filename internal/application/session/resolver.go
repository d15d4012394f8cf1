package session

import (
	"context"
	"time"

	"rexi-api/internal/domain/entity"
)

// HydrationSource 初始草稿的来源
type HydrationSource string

const (
	SourceNone     HydrationSource = "none"
	SourceSkipped  HydrationSource = "skipped"
	SourceDraft    HydrationSource = "draft"
	SourceSnapshot HydrationSource = "snapshot"
	SourceHistory  HydrationSource = "history"
)

// ResolveInput 身份解析输入
type ResolveInput struct {
	// EditID 需要继续编辑的作品 ID
	EditID string
	// AutoGenerate 直接开始生成，仅在 EditID 为空时生效
	AutoGenerate bool
}

// Resolution 身份解析结果，Draft 为 nil 表示从空草稿开始
type Resolution struct {
	Draft  *entity.DraftState
	Key    string
	Source HydrationSource
}

// ResolveDraft 决定会话启动时恢复哪一份草稿
// 优先级：作品草稿 > 未关联草稿 > 作品快照，同级比较 savedAt，相等时先列出者胜出。
func ResolveDraft(ctx context.Context, store *DraftStore, in ResolveInput, now time.Time) Resolution {
	if in.AutoGenerate && in.EditID == "" {
		return Resolution{Source: SourceSkipped}
	}

	keys := []string{DraftKeyFor(in.EditID)}
	if ptr := store.Pointer(ctx); ptr != "" && ptr != keys[0] {
		keys = append(keys, ptr)
	}

	var (
		chosen    *entity.DraftState
		chosenKey string
	)
	for _, key := range keys {
		d, ok := store.Get(ctx, key)
		if !ok {
			continue
		}
		if in.EditID != "" && d.WorkID != "" && d.WorkID != in.EditID {
			continue
		}
		if chosen == nil || d.SavedAt > chosen.SavedAt {
			d := d
			chosen = &d
			chosenKey = key
		}
	}
	if chosen != nil {
		return Resolution{Draft: chosen, Key: chosenKey, Source: SourceDraft}
	}

	if in.EditID != "" {
		if w, ok := store.WorkSnapshot(ctx); ok && w.ID == in.EditID {
			d := w.ToDraft(now)
			return Resolution{Draft: &d, Key: WorkSnapshotKey, Source: SourceSnapshot}
		}
	}

	return Resolution{Source: SourceNone}
}
