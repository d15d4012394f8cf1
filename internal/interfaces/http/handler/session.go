package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rexi-api/internal/application/history"
	"rexi-api/internal/application/session"
	"rexi-api/internal/domain/entity"
	"rexi-api/internal/interfaces/http/dto"
	"rexi-api/internal/interfaces/http/middleware"
	apperrors "rexi-api/pkg/errors"
	"rexi-api/pkg/logger"
)

// StudioHandler 生成页会话处理器
// 会话归属于 X-Browser-Session 标识的浏览会话，其他标签页无法访问。
type StudioHandler struct {
	sessions  *session.Manager
	histories *history.Service
}

// NewStudioHandler 创建生成页会话处理器
func NewStudioHandler(sessions *session.Manager, histories *history.Service) *StudioHandler {
	return &StudioHandler{sessions: sessions, histories: histories}
}

// current 解析路径中的会话
func (h *StudioHandler) current(c *gin.Context) (*session.Session, bool) {
	var uri dto.SessionIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		dto.BadRequest(c, "invalid session id")
		return nil, false
	}
	s, err := h.sessions.Get(uri.SessionID, middleware.ScopeID(c))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return s, true
}

// respondView 操作完成后返回会话状态；出错时返回错误
// 会话内的操作不随请求取消，客户端断开后结果仍写回会话。
func respondView(c *gin.Context, s *session.Session, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, s.View())
}

// respondAccepted 后台操作已开始，返回当前状态供客户端轮询
func respondAccepted(c *gin.Context, s *session.Session, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Accepted(c, s.View())
}

// Open 打开生成会话
// @Summary 打开生成会话
// @Tags Studio
// @Accept json
// @Produce json
// @Param X-Browser-Session header string false "浏览会话 ID"
// @Param body body dto.OpenSessionRequest false "编辑作品 / 自动生成参数"
// @Success 201 {object} dto.Response[session.View]
// @Router /api/studio/sessions [post]
func (h *StudioHandler) Open(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.OpenSessionRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	var initial *entity.History
	if req.EditID != "" {
		rec, err := h.histories.Get(ctx, req.EditID)
		switch {
		case err == nil:
			initial = rec
		case apperrors.HasCode(err, apperrors.CodeNotFound):
			logger.Warn(ctx, "edit target not found", "edit_id", req.EditID)
		default:
			respondError(c, err)
			return
		}
	}

	s := h.sessions.Open(ctx, session.OpenInput{
		ScopeID:        middleware.ScopeID(c),
		EditID:         req.EditID,
		AutoGenerate:   req.AutoGenerate,
		InitialText:    req.InitialText,
		InitialHistory: initial,
	})
	dto.Created(c, s.View())
}

// Get 会话当前状态
// @Summary 会话状态
// @Tags Studio
// @Produce json
// @Param sid path string true "会话 ID"
// @Success 200 {object} dto.Response[session.View]
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/studio/sessions/{sid} [get]
func (h *StudioHandler) Get(c *gin.Context) {
	s, ok := h.current(c)
	if !ok {
		return
	}
	dto.Success(c, s.View())
}

// Patch 字段修改
// @Summary 修改草稿字段
// @Tags Studio
// @Accept json
// @Produce json
// @Param sid path string true "会话 ID"
// @Param body body session.Mutation true "字段修改"
// @Success 200 {object} dto.Response[session.View]
// @Router /api/studio/sessions/{sid} [patch]
func (h *StudioHandler) Patch(c *gin.Context) {
	s, ok := h.current(c)
	if !ok {
		return
	}
	var m session.Mutation
	if err := c.ShouldBindJSON(&m); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	v, err := s.Apply(m)
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, v)
}

// AddImage 追加图片并设为当前展示
// @Router /api/studio/sessions/{sid}/images [post]
func (h *StudioHandler) AddImage(c *gin.Context) {
	s, ok := h.current(c)
	if !ok {
		return
	}
	var req dto.AddImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	dto.Success(c, s.AddImage(req.URL))
}

// SelectStyle 选中重绘风格
// @Router /api/studio/sessions/{sid}/style [post]
func (h *StudioHandler) SelectStyle(c *gin.Context) {
	s, ok := h.current(c)
	if !ok {
		return
	}
	var req dto.RedrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	dto.Success(c, s.SelectStyle(req.Style))
}

// Generate 智能生成：诗词走逐句配图，其余走文本分析后生图
// 校验通过即返回，分析与生图在后台完成，通过 GET 会话查看进度。
// @Summary 智能生成
// @Tags Studio
// @Produce json
// @Param sid path string true "会话 ID"
// @Success 202 {object} dto.Response[session.View]
// @Failure 409 {object} dto.ErrorResponse
// @Router /api/studio/sessions/{sid}/generate [post]
func (h *StudioHandler) Generate(c *gin.Context) {
	s, ok := h.current(c)
	if !ok {
		return
	}
	respondAccepted(c, s, s.BeginSmartGenerate(c.Request.Context()))
}

// GenerateFromPrompt 使用当前提示词生图
// @Success 202 {object} dto.Response[session.View]
// @Router /api/studio/sessions/{sid}/generate-image [post]
func (h *StudioHandler) GenerateFromPrompt(c *gin.Context) {
	s, ok := h.current(c)
	if !ok {
		return
	}
	respondAccepted(c, s, s.BeginGenerateFromPrompt(c.Request.Context()))
}

// Redraw 风格重绘；style 为空时使用已选中的风格
// @Success 202 {object} dto.Response[session.View]
// @Router /api/studio/sessions/{sid}/redraw [post]
func (h *StudioHandler) Redraw(c *gin.Context) {
	s, ok := h.current(c)
	if !ok {
		return
	}
	var req dto.RedrawRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	respondAccepted(c, s, s.BeginRedraw(c.Request.Context(), req.Style))
}

// ParseLink 解析链接正文填入输入框
// @Router /api/studio/sessions/{sid}/parse-link [post]
func (h *StudioHandler) ParseLink(c *gin.Context) {
	s, ok := h.current(c)
	if !ok {
		return
	}
	var req dto.ParseLinkRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	respondView(c, s, s.ParseLink(c.Request.Context(), req.URL))
}

// Rewrite 重新生成文案
// @Router /api/studio/sessions/{sid}/rewrite [post]
func (h *StudioHandler) Rewrite(c *gin.Context) {
	s, ok := h.current(c)
	if !ok {
		return
	}
	respondView(c, s, s.RewriteCopy(c.Request.Context()))
}

// GenerateVerse 单句配图，图片在后台生成
// @Success 202 {object} dto.Response[session.View]
// @Router /api/studio/sessions/{sid}/poetry/verses/{index} [post]
func (h *StudioHandler) GenerateVerse(c *gin.Context) {
	var uri dto.VerseIndexRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		dto.BadRequest(c, "invalid verse index")
		return
	}
	s, ok := h.current(c)
	if !ok {
		return
	}
	respondAccepted(c, s, s.GenerateVerseImage(c.Request.Context(), uri.Index))
}

// GenerateAllVerses 全部诗句配图，依次在后台生成
// @Success 202 {object} dto.Response[session.View]
// @Router /api/studio/sessions/{sid}/poetry/verses [post]
func (h *StudioHandler) GenerateAllVerses(c *gin.Context) {
	s, ok := h.current(c)
	if !ok {
		return
	}
	respondAccepted(c, s, s.GenerateAllVerses(c.Request.Context()))
}

// NewWork 开始新作品；当前作品有内容时返回 needsReplaceConfirm
// @Router /api/studio/sessions/{sid}/new-work [post]
func (h *StudioHandler) NewWork(c *gin.Context) {
	s, ok := h.current(c)
	if !ok {
		return
	}
	dto.Success(c, s.RequestNewWork(c.Request.Context()))
}

// ConfirmNewWork 确认替换当前作品
// @Router /api/studio/sessions/{sid}/new-work/confirm [post]
func (h *StudioHandler) ConfirmNewWork(c *gin.Context) {
	s, ok := h.current(c)
	if !ok {
		return
	}
	dto.Success(c, s.ConfirmReplace(c.Request.Context()))
}

// Flush 立即保存草稿（页面隐藏、跳转前调用）
// @Router /api/studio/sessions/{sid}/flush [post]
func (h *StudioHandler) Flush(c *gin.Context) {
	s, ok := h.current(c)
	if !ok {
		return
	}
	s.Flush(c.Request.Context())
	c.Status(http.StatusNoContent)
}

// Close 关闭会话：保存草稿并停止轮询
// @Router /api/studio/sessions/{sid} [delete]
func (h *StudioHandler) Close(c *gin.Context) {
	var uri dto.SessionIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		dto.BadRequest(c, "invalid session id")
		return
	}
	if err := h.sessions.Close(c.Request.Context(), uri.SessionID, middleware.ScopeID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// EditWork 从作品列表进入编辑前，记录列表中的作品快照
// @Summary 编辑作品
// @Tags Studio
// @Param id path string true "作品 ID"
// @Success 200 {object} dto.Response[entity.History]
// @Router /api/studio/edit-work/{id} [post]
func (h *StudioHandler) EditWork(c *gin.Context) {
	var uri dto.IDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		dto.BadRequest(c, "invalid id")
		return
	}
	rec, err := h.histories.Get(c.Request.Context(), uri.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	h.sessions.StashWork(c.Request.Context(), middleware.ScopeID(c), rec)
	dto.Success(c, rec)
}
