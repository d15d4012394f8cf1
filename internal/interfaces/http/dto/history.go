package dto

import (
	"rexi-api/internal/application/history"
	"rexi-api/internal/domain/entity"
)

// HistoryListResponse 作品列表
type HistoryListResponse struct {
	Items      []*entity.History `json:"items"`
	TotalCount int64             `json:"totalCount"`
	Skip       int               `json:"skip"`
	Take       int               `json:"take"`
}

// PatchHistoryRequest 编辑作品文案
type PatchHistoryRequest struct {
	XhsTitle   *string `json:"xhsTitle"`
	XhsContent *string `json:"xhsContent"`
}

// ToCopyPatch 转换为服务层参数
func (r *PatchHistoryRequest) ToCopyPatch() history.CopyPatch {
	return history.CopyPatch{XhsTitle: r.XhsTitle, XhsContent: r.XhsContent}
}

// SyncRequest 批量同步请求
type SyncRequest struct {
	Operations []history.SyncOperation `json:"operations"`
}

// SyncFailureResponse 批量同步失败时的响应，results 给出每个操作的处理结果
type SyncFailureResponse struct {
	Success bool                   `json:"success"`
	Error   string                 `json:"error"`
	Details string                 `json:"details"`
	Results []history.SyncOpResult `json:"results"`
}
