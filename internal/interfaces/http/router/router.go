// Package router 提供 HTTP 路由配置
package router

import (
	"strings"

	"rexi-api/internal/config"
	"rexi-api/internal/interfaces/http/handler"
	"rexi-api/internal/interfaces/http/middleware"
	"rexi-api/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers 路由使用的全部处理器
type Handlers struct {
	Health   *handler.HealthHandler
	Auth     *handler.AuthHandler
	History  *handler.HistoryHandler
	Content  *handler.ContentHandler
	Generate *handler.GenerateHandler
	Studio   *handler.StudioHandler
}

// Options 路由的可选依赖
type Options struct {
	// Limiter 为 nil 时不限流
	Limiter  middleware.RateLimiter
	LimitKey middleware.KeyFunc
	JWT      *utils.JWTManager
}

// Router HTTP 路由器
type Router struct {
	engine   *gin.Engine
	cfg      *config.Config
	handlers *Handlers
	opts     Options
}

// New 创建新的路由器
func New(cfg *config.Config, handlers *Handlers, opts Options) *Router {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := &Router{
		engine:   gin.New(),
		cfg:      cfg,
		handlers: handlers,
		opts:     opts,
	}

	r.setupMiddleware()
	r.setupRoutes()

	return r
}

// Engine 返回 Gin Engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// setupMiddleware 配置中间件
func (r *Router) setupMiddleware() {
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.RequestID())

	r.engine.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: r.cfg.Security.CORS.AllowedOrigins,
		AllowedMethods: r.cfg.Security.CORS.AllowedMethods,
		AllowedHeaders: r.cfg.Security.CORS.AllowedHeaders,
	}))

	probes := []string{"/health", "/ready", "/live", r.metricsPath()}
	if r.cfg.Observability.Tracing.Enabled {
		r.engine.Use(middleware.Trace(r.cfg.App.Name, probes...))
		r.engine.Use(middleware.TraceContext())
	}

	if r.cfg.Observability.Metrics.Enabled {
		r.engine.Use(middleware.Metrics(probes...))
	}
}

func (r *Router) metricsPath() string {
	if p := r.cfg.Observability.Metrics.Path; p != "" {
		return p
	}
	return "/metrics"
}

// setupRoutes 配置路由
func (r *Router) setupRoutes() {
	h := r.handlers

	r.engine.GET("/health", h.Health.Health)
	r.engine.GET("/ready", h.Health.Ready)
	r.engine.GET("/live", h.Health.Live)

	if r.cfg.Observability.Metrics.Enabled {
		r.engine.GET(r.metricsPath(), gin.WrapH(promhttp.Handler()))
	}

	// 本地存储的图片由 API 进程直接提供
	if local := r.cfg.Storage.Local; r.cfg.Storage.Driver == "local" && strings.HasPrefix(local.PublicURL, "/") {
		r.engine.Static(local.PublicURL, local.Dir)
	}

	api := r.engine.Group("/api")
	api.Use(middleware.BrowserSession())
	api.Use(middleware.AuthGate(r.cfg.Security.Auth, r.opts.JWT))

	limited := middleware.RateLimit(r.cfg.Security.RateLimit, r.opts.Limiter, r.opts.LimitKey)
	RegisterAPIRoutes(api, h, limited)
}
