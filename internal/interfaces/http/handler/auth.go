package handler

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"rexi-api/internal/config"
	"rexi-api/internal/interfaces/http/dto"
	"rexi-api/internal/interfaces/http/middleware"
	"rexi-api/pkg/logger"
	"rexi-api/pkg/utils"
)

// DefaultAccessTTL 访问令牌有效期
const DefaultAccessTTL = 30 * 24 * time.Hour

// AuthHandler 访问口令处理器
type AuthHandler struct {
	cfg        config.AuthConfig
	jwtManager *utils.JWTManager
	ttl        time.Duration
}

// NewAuthHandler 创建访问口令处理器
func NewAuthHandler(cfg config.AuthConfig, jwtManager *utils.JWTManager, ttl time.Duration) *AuthHandler {
	if cfg.CookieName == "" {
		cfg.CookieName = middleware.DefaultAuthCookie
	}
	if ttl <= 0 {
		ttl = DefaultAccessTTL
	}
	return &AuthHandler{cfg: cfg, jwtManager: jwtManager, ttl: ttl}
}

// Login 校验访问口令并写入令牌 Cookie
// @Summary 访问口令校验
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body dto.AuthRequest true "访问口令"
// @Success 200 {object} dto.Response[dto.AuthResponse]
// @Failure 401 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /api/auth [post]
func (h *AuthHandler) Login(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.AuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	if h.cfg.AccessPassword == "" {
		logger.Warn(ctx, "access password not configured")
		dto.InternalError(c, "Server misconfigured")
		return
	}
	if subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.cfg.AccessPassword)) != 1 {
		dto.Unauthorized(c, "Invalid password")
		return
	}

	token, err := h.jwtManager.GenerateAccessToken(middleware.ScopeID(c), h.ttl)
	if err != nil {
		logger.Error(ctx, "failed to sign access token", err)
		dto.InternalError(c, "failed to issue token")
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cfg.CookieName, token, int(h.ttl.Seconds()), "/", "", h.cfg.CookieSecure, true)
	dto.Success(c, dto.AuthResponse{Success: true, ExpiresIn: int64(h.ttl.Seconds())})
}
