package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterAPIRoutes 注册 /api 路由；limited 只用于调用模型或生图的接口
func RegisterAPIRoutes(api *gin.RouterGroup, h *Handlers, limited gin.HandlerFunc) {
	api.POST("/auth", h.Auth.Login)

	// 文本分析与文案
	api.POST("/analyze", limited, h.Content.Analyze)
	api.POST("/analyze-poetry", limited, h.Content.AnalyzePoetry)
	api.POST("/rewrite-copy", limited, h.Content.Rewrite)
	api.POST("/parse-link", limited, h.Content.ParseLink)

	// 生图任务
	api.POST("/generate", limited, h.Generate.Generate)
	api.POST("/generate/init", h.Generate.Init)

	// 作品历史
	histories := api.Group("/history")
	{
		histories.GET("", h.History.List)
		histories.DELETE("", h.History.Clear)
		histories.GET("/:id", h.History.Get)
		histories.PATCH("/:id", h.History.Patch)
		histories.DELETE("/:id", h.History.Delete)
		histories.GET("/:id/preview", h.History.Preview)
	}
	api.POST("/sync", h.History.Sync)

	// 生成页会话
	studio := api.Group("/studio")
	{
		studio.POST("/edit-work/:id", h.Studio.EditWork)

		studio.POST("/sessions", h.Studio.Open)
		studio.GET("/sessions/:sid", h.Studio.Get)
		studio.PATCH("/sessions/:sid", h.Studio.Patch)
		studio.DELETE("/sessions/:sid", h.Studio.Close)

		studio.POST("/sessions/:sid/images", h.Studio.AddImage)
		studio.POST("/sessions/:sid/style", h.Studio.SelectStyle)
		studio.POST("/sessions/:sid/flush", h.Studio.Flush)
		studio.POST("/sessions/:sid/new-work", h.Studio.NewWork)
		studio.POST("/sessions/:sid/new-work/confirm", h.Studio.ConfirmNewWork)

		studio.POST("/sessions/:sid/generate", limited, h.Studio.Generate)
		studio.POST("/sessions/:sid/generate-image", limited, h.Studio.GenerateFromPrompt)
		studio.POST("/sessions/:sid/redraw", limited, h.Studio.Redraw)
		studio.POST("/sessions/:sid/parse-link", limited, h.Studio.ParseLink)
		studio.POST("/sessions/:sid/rewrite", limited, h.Studio.Rewrite)
		studio.POST("/sessions/:sid/poetry/verses", limited, h.Studio.GenerateAllVerses)
		studio.POST("/sessions/:sid/poetry/verses/:index", limited, h.Studio.GenerateVerse)
	}
}
