// Package wire 提供依赖注入配置
package wire

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rexi-api/internal/application/content"
	"rexi-api/internal/application/history"
	"rexi-api/internal/application/imagegen"
	"rexi-api/internal/application/linkparse"
	"rexi-api/internal/application/session"
	"rexi-api/internal/config"
	"rexi-api/internal/domain/repository"
	"rexi-api/internal/domain/service"
	"rexi-api/internal/infrastructure/llm"
	"rexi-api/internal/infrastructure/messaging"
	"rexi-api/internal/infrastructure/persistence/memory"
	"rexi-api/internal/infrastructure/persistence/postgres"
	"rexi-api/internal/infrastructure/persistence/redis"
	"rexi-api/internal/infrastructure/storage"
	"rexi-api/internal/infrastructure/storage/local"
	"rexi-api/internal/infrastructure/storage/s3"
	"rexi-api/internal/interfaces/http/handler"
	"rexi-api/internal/interfaces/http/middleware"
	"rexi-api/internal/interfaces/http/router"
	wfchain "rexi-api/internal/workflow/chain"
	workflowport "rexi-api/internal/workflow/port"
	"rexi-api/pkg/logger"
	"rexi-api/pkg/utils"
)

// Version 由入口在构建时注入，健康检查接口返回
var Version = "dev"

// APIApp API 进程依赖
type APIApp struct {
	Router   *router.Router
	Sessions *session.Manager
}

// WorkerApp 生图 worker 依赖
type WorkerApp struct {
	Consumer  *messaging.Consumer
	Processor *imagegen.Processor
}

// MigrationApp 迁移工具依赖
type MigrationApp struct {
	PgClient *postgres.Client
}

// ProvidePostgresClient 提供 PostgreSQL 客户端，未启用时返回 nil
func ProvidePostgresClient(ctx context.Context, cfg *config.Config) (*postgres.Client, func(), error) {
	pgCfg := &cfg.Database.Postgres
	if !pgCfg.Enabled {
		logger.Warn(ctx, "postgres disabled, history is kept in memory")
		return nil, func() {}, nil
	}
	client, err := postgres.NewClient(pgCfg)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := client.Close(); err != nil {
			logger.Error(ctx, "failed to close postgres client", err)
		}
	}
	if pgCfg.AutoMigrate {
		if err := postgres.Migrate(ctx, client.DB()); err != nil {
			cleanup()
			return nil, nil, err
		}
	}
	return client, cleanup, nil
}

// ProvideRequiredPostgresClient 提供 PostgreSQL 客户端，未启用时报错
func ProvideRequiredPostgresClient(ctx context.Context, cfg *config.Config) (*postgres.Client, func(), error) {
	if !cfg.Database.Postgres.Enabled {
		return nil, nil, errors.New("postgres is required but database.postgres.enabled is false")
	}
	return ProvidePostgresClient(ctx, cfg)
}

// ProvideRedisClient 提供 Redis 客户端，未启用时返回 nil
func ProvideRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, func(), error) {
	if !cfg.Cache.Redis.Enabled {
		logger.Warn(ctx, "redis disabled, drafts and image jobs stay in process")
		return nil, func() {}, nil
	}
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := client.Close(); err != nil {
			logger.Error(ctx, "failed to close redis client", err)
		}
	}
	return client, cleanup, nil
}

// ProvideRequiredRedisClient 提供 Redis 客户端，未启用时报错
func ProvideRequiredRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, func(), error) {
	if !cfg.Cache.Redis.Enabled {
		return nil, nil, errors.New("redis is required but cache.redis.enabled is false")
	}
	return ProvideRedisClient(ctx, cfg)
}

// ProvideHistoryRepository 按是否启用 PostgreSQL 选择作品仓储
func ProvideHistoryRepository(pg *postgres.Client) repository.HistoryRepository {
	if pg == nil {
		return memory.NewHistoryRepository()
	}
	return postgres.NewHistoryRepository(pg)
}

// ProvideTransactor 提供事务管理器，内存仓储自身即支持事务
func ProvideTransactor(pg *postgres.Client, repo repository.HistoryRepository) repository.Transactor {
	if pg != nil {
		return postgres.NewTxManager(pg)
	}
	if tx, ok := repo.(repository.Transactor); ok {
		return tx
	}
	return nil
}

// ProvideSessionKV 提供草稿存储；内存实现会定期清理过期的浏览会话
func ProvideSessionKV(ctx context.Context, cfg *config.Config, rc *redis.Client) (repository.SessionKV, func()) {
	ttl := cfg.Session.DraftTTL
	if rc != nil {
		return redis.NewSessionKV(rc, ttl), func() {}
	}

	kv := memory.NewSessionKV(ttl)
	interval := ttl / 4
	if interval <= 0 || interval > 10*time.Minute {
		interval = 10 * time.Minute
	}
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if n := kv.Sweep(); n > 0 {
					logger.Debug(ctx, "expired draft scopes swept", "count", n)
				}
			}
		}
	}()
	return kv, func() { close(stop) }
}

// ProvideRateLimiter 提供限流器，未启用 Redis 时返回 nil（不限流）
func ProvideRateLimiter(rc *redis.Client) middleware.RateLimiter {
	if rc == nil {
		return nil
	}
	return redis.NewRateLimiter(rc)
}

// ProvideObjectStore 按 storage.driver 选择图片存储
func ProvideObjectStore(ctx context.Context, cfg *config.Config) (storage.ObjectStore, error) {
	switch strings.ToLower(cfg.Storage.Driver) {
	case "local":
		return local.New(cfg.Storage.Local.Dir, cfg.Storage.Local.PublicURL)
	case "s3":
		return s3.New(ctx, cfg.Storage.S3)
	case "", "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.Storage.Driver)
	}
}

// ProvideModelLister 默认提供商配置了 API Key 时提供模型列表客户端
func ProvideModelLister(factory *llm.EinoFactory) workflowport.ModelLister {
	_, p, ok := factory.Provider("")
	if !ok || strings.TrimSpace(p.APIKey) == "" {
		return nil
	}
	return llm.NewOpenAIClient(p)
}

// ProvideImageAPI 生图提供商配置了 API Key 时提供图片接口，否则进入演示模式
func ProvideImageAPI(cfg *config.Config, factory *llm.EinoFactory) imagegen.ImageAPI {
	name, p, ok := factory.Provider(cfg.Image.Provider)
	if !ok || strings.TrimSpace(p.APIKey) == "" {
		logger.Warn(context.Background(), "image provider has no api key, serving placeholder images", "provider", name)
		return nil
	}
	return llm.NewOpenAIClient(p)
}

// ProvideModelChooser 提供文案模型选择器
func ProvideModelChooser(cfg *config.Config, factory *llm.EinoFactory, lister workflowport.ModelLister) *content.ModelChooser {
	_, p, _ := factory.Provider("")
	return content.NewModelChooser(lister, content.ChooserOptions{
		Preferred: cfg.LLM.PreferredModel,
		Include:   cfg.LLM.ModelInclude,
		Exclude:   cfg.LLM.ModelExclude,
		TTL:       cfg.LLM.ModelChoiceTTL,
		Fallback:  p.Model,
	})
}

// ProvideContentService 提供文案服务，未配置 API Key 时为演示模式
func ProvideContentService(cfg *config.Config, factory *llm.EinoFactory, chain *wfchain.ContentChain, chooser *content.ModelChooser) *content.Service {
	if !factory.Configured() {
		logger.Warn(context.Background(), "llm provider has no api key, content runs in demo mode")
		return content.NewService(chain, nil, chooser, cfg.LLM.DefaultProvider)
	}
	return content.NewService(chain, factory, chooser, cfg.LLM.DefaultProvider)
}

// ProvideImageQueue 启用 Redis 时通过 Stream 投递到 worker，否则在进程内执行
func ProvideImageQueue(cfg *config.Config, rc *redis.Client, processor *imagegen.Processor) (service.ImageDispatcher, func()) {
	if rc != nil {
		producer := messaging.NewProducer(rc.Redis(), int64(cfg.Messaging.RedisStream.MaxLen))
		return messaging.NewStreamDispatcher(producer), func() {}
	}
	inline := imagegen.NewInlineDispatcher(processor)
	return inline, inline.Wait
}

// ProvideLinkParser 提供链接解析器
func ProvideLinkParser(cfg *config.Config) *linkparse.Parser {
	return linkparse.NewParser(cfg.LinkParse, nil)
}

// ProvideSessionManager 提供会话管理器，清理时保存并关闭所有会话
func ProvideSessionManager(
	ctx context.Context,
	cfg *config.Config,
	kv repository.SessionKV,
	tasks *history.TaskStore,
	contentSvc *content.Service,
	submitter *imagegen.Submitter,
	parser *linkparse.Parser,
) (*session.Manager, func()) {
	s := cfg.Session
	m := session.NewManager(session.Deps{
		KV:      kv,
		Tasks:   tasks,
		Content: contentSvc,
		Images:  submitter,
		Links:   parser,
	}, session.Options{
		SaveDebounce:      s.SaveDebounce,
		PollInterval:      s.PollInterval,
		CopySyncDebounce:  s.CopySyncDebounce,
		VersePollAttempts: s.VersePollAttempts,
		VersePollInterval: s.VersePollInterval,
		IdleTTL:           s.IdleTTL,
	})
	return m, func() { m.Shutdown(logger.Detach(ctx)) }
}

// ProvideJWTManager 提供访问令牌管理器，未配置密钥时退回访问口令
func ProvideJWTManager(cfg *config.Config) *utils.JWTManager {
	secret := cfg.Security.JWT.Secret
	if secret == "" {
		secret = cfg.Security.Auth.AccessPassword
	}
	return utils.NewJWTManager(secret, cfg.Security.JWT.Issuer)
}

// ProvideHealthHandler 提供健康检查处理器
func ProvideHealthHandler(pg *postgres.Client, rc *redis.Client) *handler.HealthHandler {
	return handler.NewHealthHandler(pg, rc, Version)
}

// ProvideAuthHandler 提供口令登录处理器
func ProvideAuthHandler(cfg *config.Config, jwt *utils.JWTManager) *handler.AuthHandler {
	return handler.NewAuthHandler(cfg.Security.Auth, jwt, cfg.Security.JWT.Expiration)
}

// ProvideRouterOptions 提供路由可选依赖
func ProvideRouterOptions(limiter middleware.RateLimiter, jwt *utils.JWTManager) router.Options {
	return router.Options{
		Limiter:  limiter,
		LimitKey: redis.BuildRateLimitKey,
		JWT:      jwt,
	}
}

// ProvideRouter 提供路由器
func ProvideRouter(cfg *config.Config, handlers *router.Handlers, opts router.Options) *router.Router {
	return router.New(cfg, handlers, opts)
}

// ProvideImageConsumer 提供生图队列消费者并注册处理函数
func ProvideImageConsumer(cfg *config.Config, rc *redis.Client, processor *imagegen.Processor) *messaging.Consumer {
	rs := cfg.Messaging.RedisStream
	group := messaging.ConsumerGroupImageWorker
	if rs.ConsumerGroupPrefix != "" {
		group = messaging.ConsumerGroup(rs.ConsumerGroupPrefix + ":" + string(group))
	}
	consumer := messaging.NewConsumer(rc.Redis(), messaging.ConsumerConfig{
		Stream:        messaging.StreamImageGen,
		Group:         group,
		ConsumerName:  messaging.HostnameConsumerName(),
		BlockTimeout:  rs.BlockTimeout,
		ClaimInterval: rs.ClaimInterval,
		RetryLimit:    rs.RetryLimit,
		Backoff: messaging.BackoffConfig{
			Initial:    rs.RetryBackoff.Initial,
			Max:        rs.RetryBackoff.Max,
			Multiplier: rs.RetryBackoff.Multiplier,
		},
	})
	consumer.RegisterHandler(messaging.TypeImageGen, processor.MessageHandler())
	return consumer
}

// ProvideRenderer 提供图片渲染器
func ProvideRenderer(cfg *config.Config, api imagegen.ImageAPI, store storage.ObjectStore) *imagegen.Renderer {
	return imagegen.NewRenderer(api, store, cfg.Image)
}
