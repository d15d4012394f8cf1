// Package repository 定义数据访问层接口
package repository

import (
	"context"
)

// TxKey 事务上下文键类型
type TxKey struct{}

// Transactor 事务管理接口
type Transactor interface {
	// WithTransaction 在事务中执行操作
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// 分页默认值
const (
	DefaultTake = 6
	MaxTake     = 50
)

// Pagination 偏移分页参数
type Pagination struct {
	Skip int `json:"skip"`
	Take int `json:"take"`
}

// NewPagination 创建分页参数，take 限制在 [1, MaxTake]，skip 不小于 0
func NewPagination(skip, take int) Pagination {
	if skip < 0 {
		skip = 0
	}
	if take < 1 {
		take = 1
	}
	if take > MaxTake {
		take = MaxTake
	}
	return Pagination{Skip: skip, Take: take}
}

// Offset 计算偏移量
func (p Pagination) Offset() int {
	return p.Skip
}

// Limit 获取限制数量
func (p Pagination) Limit() int {
	return p.Take
}

// PagedResult 分页结果
type PagedResult[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
}

// NewPagedResult 创建分页结果
func NewPagedResult[T any](items []T, total int64) *PagedResult[T] {
	if items == nil {
		items = []T{}
	}
	return &PagedResult[T]{
		Items:      items,
		TotalCount: total,
	}
}
