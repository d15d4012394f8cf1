// Package middleware 提供 HTTP 中间件
package middleware

import (
	"rexi-api/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader 请求 ID 头
	RequestIDHeader = "X-Request-ID"
	// BrowserSessionHeader 浏览会话 ID 头，同一标签页内保持不变
	BrowserSessionHeader = "X-Browser-Session"

	// ScopeIDKey 浏览会话 ID 在 Gin Context 中的键
	ScopeIDKey = "scope_id"
)

// RequestID 请求 ID 注入中间件
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set("request_id", requestID)
		ctx := logger.WithContext(c.Request.Context(), logger.RequestIDKey, requestID)
		c.Request = c.Request.WithContext(ctx)
		c.Header(RequestIDHeader, requestID)

		c.Next()
	}
}

// BrowserSession 读取浏览会话 ID，缺失时生成新 ID 并通过响应头回传
func BrowserSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		scopeID := c.GetHeader(BrowserSessionHeader)
		if scopeID == "" || len(scopeID) > 64 {
			scopeID = uuid.New().String()
		}

		c.Set(ScopeIDKey, scopeID)
		ctx := logger.WithContext(c.Request.Context(), logger.ScopeIDKey, scopeID)
		c.Request = c.Request.WithContext(ctx)
		c.Header(BrowserSessionHeader, scopeID)

		c.Next()
	}
}

// ScopeID 返回当前请求的浏览会话 ID
func ScopeID(c *gin.Context) string {
	return c.GetString(ScopeIDKey)
}
