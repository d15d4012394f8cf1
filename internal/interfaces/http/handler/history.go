package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"rexi-api/internal/application/history"
	"rexi-api/internal/interfaces/http/dto"
	"rexi-api/pkg/logger"
)

// HistoryHandler 作品历史处理器
type HistoryHandler struct {
	svc *history.Service
}

// NewHistoryHandler 创建作品历史处理器
func NewHistoryHandler(svc *history.Service) *HistoryHandler {
	return &HistoryHandler{svc: svc}
}

// List 分页列出作品
// @Summary 作品列表
// @Tags History
// @Produce json
// @Param take query int false "每页数量 (1-50，默认 6)"
// @Param skip query int false "偏移量"
// @Success 200 {object} dto.Response[dto.HistoryListResponse]
// @Router /api/history [get]
func (h *HistoryHandler) List(c *gin.Context) {
	page := dto.BindPage(c)
	result, err := h.svc.List(c.Request.Context(), page.Skip, page.Take)
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, &dto.HistoryListResponse{
		Items:      result.Items,
		TotalCount: result.TotalCount,
		Skip:       page.Skip,
		Take:       page.Take,
	})
}

// Clear 清空作品历史
// @Summary 清空作品
// @Tags History
// @Success 204
// @Router /api/history [delete]
func (h *HistoryHandler) Clear(c *gin.Context) {
	if err := h.svc.Clear(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Get 获取作品
// @Summary 作品详情
// @Tags History
// @Produce json
// @Param id path string true "作品 ID"
// @Success 200 {object} dto.Response[entity.History]
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/history/{id} [get]
func (h *HistoryHandler) Get(c *gin.Context) {
	var uri dto.IDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		dto.BadRequest(c, "invalid id")
		return
	}
	rec, err := h.svc.Get(c.Request.Context(), uri.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, rec)
}

// Delete 删除作品
// @Summary 删除作品
// @Tags History
// @Param id path string true "作品 ID"
// @Success 204
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/history/{id} [delete]
func (h *HistoryHandler) Delete(c *gin.Context) {
	var uri dto.IDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		dto.BadRequest(c, "invalid id")
		return
	}
	if err := h.svc.Delete(c.Request.Context(), uri.ID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Patch 编辑作品文案
// @Summary 编辑作品文案
// @Tags History
// @Accept json
// @Produce json
// @Param id path string true "作品 ID"
// @Param body body dto.PatchHistoryRequest true "文案"
// @Success 200 {object} dto.Response[entity.History]
// @Router /api/history/{id} [patch]
func (h *HistoryHandler) Patch(c *gin.Context) {
	var uri dto.IDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		dto.BadRequest(c, "invalid id")
		return
	}
	var req dto.PatchHistoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	rec, err := h.svc.PatchCopy(c.Request.Context(), uri.ID, req.ToCopyPatch())
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, rec)
}

// Preview 作品图文预览；format=html 时直接返回 HTML 片段
// @Summary 作品预览
// @Tags History
// @Produce json,html
// @Param id path string true "作品 ID"
// @Success 200 {object} dto.Response[history.Preview]
// @Router /api/history/{id}/preview [get]
func (h *HistoryHandler) Preview(c *gin.Context) {
	var uri dto.IDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		dto.BadRequest(c, "invalid id")
		return
	}
	p, err := h.svc.Preview(c.Request.Context(), uri.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	if c.Query("format") == "html" {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(p.HTML))
		return
	}
	dto.Success(c, p)
}

// Sync 批量同步本地作品
// @Summary 批量同步
// @Tags History
// @Accept json
// @Produce json
// @Param body body dto.SyncRequest true "操作列表"
// @Success 200 {object} dto.Response[history.SyncResult]
// @Failure 500 {object} dto.SyncFailureResponse
// @Router /api/sync [post]
func (h *HistoryHandler) Sync(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	result, err := h.svc.Sync(ctx, req.Operations)
	var syncErr *history.SyncError
	switch {
	case errors.As(err, &syncErr):
		logger.Warn(ctx, "batch sync rolled back", "operations", len(req.Operations), "error", err.Error())
		c.JSON(http.StatusInternalServerError, dto.SyncFailureResponse{
			Success: false,
			Error:   "Batch sync failed",
			Details: history.ErrorMessage(syncErr.Err),
			Results: syncErr.Results,
		})
	case err != nil:
		respondError(c, err)
	default:
		dto.Success(c, result)
	}
}
