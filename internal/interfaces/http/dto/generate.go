package dto

import (
	"rexi-api/internal/application/imagegen"
	"rexi-api/internal/domain/entity"
)

// GenerateRequest 生图请求；taskId 为空时先创建作品记录
type GenerateRequest struct {
	TaskID       string `json:"taskId"`
	Prompt       string `json:"prompt"`
	OriginalText string `json:"originalText"`
	XhsTitle     string `json:"xhsTitle"`
	XhsContent   string `json:"xhsContent"`
}

// ToSubmit 转换为服务层参数
func (r *GenerateRequest) ToSubmit() imagegen.GenerateRequest {
	return imagegen.GenerateRequest{
		TaskID:       r.TaskID,
		Prompt:       r.Prompt,
		OriginalText: r.OriginalText,
		XhsTitle:     r.XhsTitle,
		XhsContent:   r.XhsContent,
	}
}

// InitTaskRequest 预创建作品记录请求
type InitTaskRequest struct {
	OriginalText string `json:"originalText"`
	Prompt       string `json:"prompt"`
	XhsTitle     string `json:"xhsTitle"`
	XhsContent   string `json:"xhsContent"`
	Style        string `json:"style"`
}

// ToInit 转换为服务层参数
func (r *InitTaskRequest) ToInit() imagegen.InitRequest {
	return imagegen.InitRequest{
		OriginalText: r.OriginalText,
		Prompt:       r.Prompt,
		XhsTitle:     r.XhsTitle,
		XhsContent:   r.XhsContent,
		Style:        r.Style,
	}
}

// TaskResponse 任务标识与状态
type TaskResponse struct {
	ID     string            `json:"id"`
	TaskID string            `json:"taskId"`
	Status entity.TaskStatus `json:"status"`
}

// ToTaskResponse 将作品记录转换为任务响应
func ToTaskResponse(h *entity.History) *TaskResponse {
	return &TaskResponse{ID: h.ID, TaskID: h.ID, Status: h.Status}
}
