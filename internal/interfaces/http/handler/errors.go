package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"rexi-api/internal/interfaces/http/dto"
	apperrors "rexi-api/pkg/errors"
	"rexi-api/pkg/logger"
)

// respondError 把服务层错误写为统一错误响应
func respondError(c *gin.Context, err error) {
	ctx := c.Request.Context()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		// 客户端已断开，会话内的操作仍在继续
		logger.Debug(ctx, "client gone before response", "path", c.FullPath())
		c.Abort()
		return
	}
	if apperrors.IsAppError(err) {
		appErr := apperrors.AsAppError(err)
		if appErr.HTTPStatus >= http.StatusInternalServerError {
			logger.Error(ctx, "request failed", err, "path", c.FullPath(), "code", appErr.Code)
		}
		dto.FromError(c, appErr)
		return
	}
	logger.Error(ctx, "unexpected error", err, "path", c.FullPath())
	dto.InternalError(c, "internal server error")
}

// bindOptionalJSON 绑定请求体，空请求体视为零值
func bindOptionalJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return false
	}
	return true
}
