// Package entity 定义领域实体
package entity

import (
	"strings"
	"time"
)

// TaskStatus 生成任务状态
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "PENDING"
	TaskStatusProcessing TaskStatus = "PROCESSING"
	TaskStatusCompleted  TaskStatus = "COMPLETED"
	TaskStatusFailed     TaskStatus = "FAILED"
)

// EmptyOriginalText 原文为空时的占位文本
const EmptyOriginalText = "(empty)"

// IsTerminal 是否为终态
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// Valid 是否为已知状态
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusProcessing, TaskStatusCompleted, TaskStatusFailed:
		return true
	}
	return false
}

// History 作品记录，同时作为生成任务在服务端的载体
type History struct {
	ID              string     `json:"id"`
	OriginalText    string     `json:"originalText"`
	GeneratedPrompt string     `json:"generatedPrompt"`
	XhsTitle        *string    `json:"xhsTitle"`
	XhsContent      *string    `json:"xhsContent"`
	ImageURL        *string    `json:"imageUrl"`
	Style           *string    `json:"style"`
	Status          TaskStatus `json:"status"`
	Version         int        `json:"version"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// NewHistory 创建待处理的作品记录
func NewHistory(originalText, prompt, style string) *History {
	now := time.Now()
	if strings.TrimSpace(originalText) == "" {
		originalText = EmptyOriginalText
	}
	return &History{
		OriginalText:    originalText,
		GeneratedPrompt: prompt,
		Style:           optional(style),
		Status:          TaskStatusPending,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// HistoryPatch 作品记录的部分更新，nil 字段保持不变
type HistoryPatch struct {
	Status          *TaskStatus `json:"status,omitempty"`
	ImageURL        *string     `json:"imageUrl,omitempty"`
	Style           *string     `json:"style,omitempty"`
	XhsTitle        *string     `json:"xhsTitle,omitempty"`
	XhsContent      *string     `json:"xhsContent,omitempty"`
	GeneratedPrompt *string     `json:"generatedPrompt,omitempty"`
	OriginalText    *string     `json:"originalText,omitempty"`
}

// IsEmpty 是否没有任何字段需要更新
func (p HistoryPatch) IsEmpty() bool {
	return p.Status == nil && p.ImageURL == nil && p.Style == nil &&
		p.XhsTitle == nil && p.XhsContent == nil &&
		p.GeneratedPrompt == nil && p.OriginalText == nil
}

// StatusPatch 仅更新状态
func StatusPatch(status TaskStatus) HistoryPatch {
	return HistoryPatch{Status: &status}
}

// Apply 应用部分更新并递增版本号
func (h *History) Apply(p HistoryPatch) {
	if p.Status != nil {
		h.Status = *p.Status
	}
	if p.ImageURL != nil {
		h.ImageURL = p.ImageURL
	}
	if p.Style != nil {
		h.Style = p.Style
	}
	if p.XhsTitle != nil {
		h.XhsTitle = p.XhsTitle
	}
	if p.XhsContent != nil {
		h.XhsContent = p.XhsContent
	}
	if p.GeneratedPrompt != nil {
		h.GeneratedPrompt = *p.GeneratedPrompt
	}
	if p.OriginalText != nil {
		h.OriginalText = *p.OriginalText
	}
	h.Version++
	h.UpdatedAt = time.Now()
}

// Title 返回文案标题，未设置时为空串
func (h *History) Title() string {
	return deref(h.XhsTitle)
}

// Content 返回文案正文，未设置时为空串
func (h *History) Content() string {
	return deref(h.XhsContent)
}

// Image 返回图片地址，未设置时为空串
func (h *History) Image() string {
	return deref(h.ImageURL)
}

// Snapshot 投影为作品快照（列表页跳转编辑时使用）
func (h *History) Snapshot() WorkSnapshot {
	return WorkSnapshot{
		ID:              h.ID,
		OriginalText:    h.OriginalText,
		ImageURL:        h.Image(),
		XhsTitle:        h.Title(),
		XhsContent:      h.Content(),
		GeneratedPrompt: h.GeneratedPrompt,
	}
}

// optional 空串视为未设置
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Optional 空串返回 nil，否则返回指针
func Optional(s string) *string {
	return optional(s)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
