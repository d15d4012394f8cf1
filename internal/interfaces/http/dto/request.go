package dto

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"rexi-api/internal/domain/repository"
)

// PageRequest 偏移分页参数
type PageRequest struct {
	Skip int `form:"skip" json:"skip"`
	Take int `form:"take" json:"take"`
}

// BindPage 从查询参数绑定分页；缺失或非法时使用默认值
func BindPage(c *gin.Context) PageRequest {
	p := repository.NewPagination(
		parseIntWithDefault(c.Query("skip"), 0),
		parseIntWithDefault(c.Query("take"), repository.DefaultTake),
	)
	return PageRequest{Skip: p.Skip, Take: p.Take}
}

// parseIntWithDefault 解析整数，失败时返回默认值
func parseIntWithDefault(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// IDRequest 资源 ID 请求
type IDRequest struct {
	ID string `uri:"id" binding:"required"`
}

// SessionIDRequest 会话 ID 请求
type SessionIDRequest struct {
	SessionID string `uri:"sid" binding:"required"`
}
