package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"rexi-api/internal/config"
	"rexi-api/internal/interfaces/http/dto"
	"rexi-api/pkg/metrics"
	"rexi-api/pkg/utils"
)

// DefaultAuthCookie 访问令牌 Cookie 名
const DefaultAuthCookie = "auth_token"

// DefaultPublicPaths 无需访问令牌的路径前缀
var DefaultPublicPaths = []string{
	"/api/auth",
	"/health",
	"/ready",
	"/live",
	"/metrics",
}

// AuthGate 访问口令中间件：未启用时放行，启用后要求 Cookie 中携带有效令牌
func AuthGate(cfg config.AuthConfig, jwtManager *utils.JWTManager, publicPaths ...string) gin.HandlerFunc {
	cookieName := cfg.CookieName
	if cookieName == "" {
		cookieName = DefaultAuthCookie
	}
	if len(publicPaths) == 0 {
		publicPaths = DefaultPublicPaths
	}

	return func(c *gin.Context) {
		if !cfg.Enabled || c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}
		for _, p := range publicPaths {
			if strings.HasPrefix(c.Request.URL.Path, p) {
				c.Next()
				return
			}
		}

		token, err := c.Cookie(cookieName)
		if err != nil || token == "" {
			abortUnauthorized(c, "missing access token")
			return
		}
		if _, err := jwtManager.ParseToken(token); err != nil {
			msg := "invalid access token"
			if err == utils.ErrExpiredToken {
				msg = "access token expired"
			}
			abortUnauthorized(c, msg)
			return
		}

		c.Next()
	}
}

// abortUnauthorized 终止请求并返回 401
func abortUnauthorized(c *gin.Context, msg string) {
	metrics.HTTPRejectedTotal.WithLabelValues("unauthorized").Inc()
	c.Abort()
	dto.Unauthorized(c, msg)
}
