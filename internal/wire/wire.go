//go:build wireinject
// +build wireinject

package wire

import (
	"context"

	"github.com/google/wire"

	"rexi-api/internal/application/history"
	"rexi-api/internal/application/imagegen"
	"rexi-api/internal/config"
	"rexi-api/internal/domain/service"
	"rexi-api/internal/infrastructure/llm"
	"rexi-api/internal/interfaces/http/handler"
	"rexi-api/internal/interfaces/http/router"
	wfchain "rexi-api/internal/workflow/chain"
	workflowport "rexi-api/internal/workflow/port"
	"rexi-api/internal/workflow/prompt"
)

// InitializeApp 初始化 API 进程
func InitializeApp(ctx context.Context, cfg *config.Config) (*APIApp, func(), error) {
	wire.Build(
		DataSet,
		ContentSet,
		ImageSet,
		ProvideImageQueue,
		imagegen.NewSubmitter,
		StudioSet,
		RouterSet,
		wire.Struct(new(APIApp), "*"),
	)
	return nil, nil, nil
}

// InitializeWorker 初始化生图 worker
func InitializeWorker(ctx context.Context, cfg *config.Config) (*WorkerApp, func(), error) {
	wire.Build(
		ProvideRequiredPostgresClient,
		ProvideRequiredRedisClient,
		ProvideHistoryRepository,
		llm.NewEinoFactory,
		ImageSet,
		ProvideImageConsumer,
		wire.Struct(new(WorkerApp), "*"),
	)
	return nil, nil, nil
}

// InitializeMigration 初始化迁移工具
func InitializeMigration(ctx context.Context, cfg *config.Config) (*MigrationApp, func(), error) {
	wire.Build(
		ProvideRequiredPostgresClient,
		wire.Struct(new(MigrationApp), "*"),
	)
	return nil, nil, nil
}

// DataSet 存储层提供者集合（PostgreSQL / Redis 均可选）
var DataSet = wire.NewSet(
	ProvidePostgresClient,
	ProvideRedisClient,
	ProvideHistoryRepository,
	ProvideTransactor,
	ProvideSessionKV,
	ProvideRateLimiter,
)

// ContentSet 文案生成提供者集合
var ContentSet = wire.NewSet(
	llm.NewEinoFactory,
	wire.Bind(new(workflowport.ChatModelFactory), new(*llm.EinoFactory)),
	prompt.NewRegistry,
	wfchain.NewContentChain,
	ProvideModelLister,
	ProvideModelChooser,
	ProvideContentService,
	ProvideLinkParser,
)

// ImageSet 生图提供者集合
var ImageSet = wire.NewSet(
	ProvideObjectStore,
	ProvideImageAPI,
	ProvideRenderer,
	wire.Bind(new(service.ImageRenderer), new(*imagegen.Renderer)),
	imagegen.NewProcessor,
)

// StudioSet 作品与会话提供者集合
var StudioSet = wire.NewSet(
	history.NewService,
	history.NewTaskStore,
	ProvideSessionManager,
)

// RouterSet 路由器提供者集合
var RouterSet = wire.NewSet(
	ProvideJWTManager,
	ProvideHealthHandler,
	ProvideAuthHandler,
	handler.NewHistoryHandler,
	handler.NewContentHandler,
	handler.NewGenerateHandler,
	handler.NewStudioHandler,
	wire.Struct(new(router.Handlers), "*"),
	ProvideRouterOptions,
	ProvideRouter,
)
