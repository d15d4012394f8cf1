package handler

import (
	"github.com/gin-gonic/gin"

	"rexi-api/internal/application/content"
	"rexi-api/internal/application/linkparse"
	"rexi-api/internal/interfaces/http/dto"
)

// ContentHandler 文本分析与文案处理器
type ContentHandler struct {
	svc    *content.Service
	parser *linkparse.Parser
}

// NewContentHandler 创建文本分析处理器
func NewContentHandler(svc *content.Service, parser *linkparse.Parser) *ContentHandler {
	return &ContentHandler{svc: svc, parser: parser}
}

// Analyze 分析文本，生成提示词与文案
// @Summary 文本分析
// @Tags Content
// @Accept json
// @Produce json
// @Param body body dto.AnalyzeRequest true "文本"
// @Success 200 {object} dto.Response[entity.Analysis]
// @Router /api/analyze [post]
func (h *ContentHandler) Analyze(c *gin.Context) {
	var req dto.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	result, err := h.svc.Analyze(c.Request.Context(), req.Text, req.Style)
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, result)
}

// AnalyzePoetry 诗词逐句分析
// @Summary 诗词分析
// @Tags Content
// @Accept json
// @Produce json
// @Param body body dto.AnalyzePoetryRequest true "诗词"
// @Success 200 {object} dto.Response[entity.PoetryAnalysis]
// @Router /api/analyze-poetry [post]
func (h *ContentHandler) AnalyzePoetry(c *gin.Context) {
	var req dto.AnalyzePoetryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	result, err := h.svc.AnalyzePoetry(c.Request.Context(), req.Text)
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, result)
}

// Rewrite 改写文案
// @Summary 文案改写
// @Tags Content
// @Accept json
// @Produce json
// @Param body body dto.RewriteRequest true "原文与当前文案"
// @Success 200 {object} dto.Response[entity.Copy]
// @Router /api/rewrite-copy [post]
func (h *ContentHandler) Rewrite(c *gin.Context) {
	var req dto.RewriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	result, err := h.svc.Rewrite(c.Request.Context(), req.OriginalText, req.CurrentContent)
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, result)
}

// ParseLink 抓取文章链接正文
// @Summary 链接解析
// @Tags Content
// @Accept json
// @Produce json
// @Param body body dto.ParseLinkRequest true "链接"
// @Success 200 {object} dto.Response[dto.ParseLinkResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /api/parse-link [post]
func (h *ContentHandler) ParseLink(c *gin.Context) {
	var req dto.ParseLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	text, err := h.parser.Parse(c.Request.Context(), req.URL)
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, &dto.ParseLinkResponse{Text: text, CharCount: len([]rune(text))})
}
