package handler

import (
	"github.com/gin-gonic/gin"

	"rexi-api/internal/application/imagegen"
	"rexi-api/internal/interfaces/http/dto"
)

// GenerateHandler 生图任务处理器
type GenerateHandler struct {
	submitter *imagegen.Submitter
}

// NewGenerateHandler 创建生图任务处理器
func NewGenerateHandler(submitter *imagegen.Submitter) *GenerateHandler {
	return &GenerateHandler{submitter: submitter}
}

// Generate 提交生图任务，立即返回 202
// @Summary 提交生图
// @Tags Generate
// @Accept json
// @Produce json
// @Param body body dto.GenerateRequest true "提示词与文案"
// @Success 202 {object} dto.Response[dto.TaskResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/generate [post]
func (h *GenerateHandler) Generate(c *gin.Context) {
	var req dto.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	rec, err := h.submitter.Submit(c.Request.Context(), req.ToSubmit())
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Accepted(c, dto.ToTaskResponse(rec))
}

// Init 预创建 PENDING 作品记录
// @Summary 预创建任务
// @Tags Generate
// @Accept json
// @Produce json
// @Param body body dto.InitTaskRequest true "原文与文案"
// @Success 201 {object} dto.Response[dto.TaskResponse]
// @Router /api/generate/init [post]
func (h *GenerateHandler) Init(c *gin.Context) {
	var req dto.InitTaskRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	rec, err := h.submitter.Init(c.Request.Context(), req.ToInit())
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Created(c, dto.ToTaskResponse(rec))
}
