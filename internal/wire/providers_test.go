package wire

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rexi-api/internal/application/imagegen"
	"rexi-api/internal/config"
	"rexi-api/internal/infrastructure/llm"
	"rexi-api/internal/infrastructure/persistence/memory"
	"rexi-api/internal/infrastructure/persistence/redis"
	"rexi-api/internal/infrastructure/storage/local"
	"rexi-api/pkg/utils"
)

func TestProvideHistoryStore_InMemory(t *testing.T) {
	repo := ProvideHistoryRepository(nil)
	_, ok := repo.(*memory.HistoryRepository)
	require.True(t, ok)

	tx := ProvideTransactor(nil, repo)
	assert.NotNil(t, tx)
	assert.Same(t, repo.(*memory.HistoryRepository), tx.(*memory.HistoryRepository))
}

func TestProvideOptionalClients_Disabled(t *testing.T) {
	cfg := &config.Config{}
	pg, cleanup, err := ProvidePostgresClient(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, pg)
	cleanup()

	rc, cleanup, err := ProvideRedisClient(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, rc)
	cleanup()

	_, _, err = ProvideRequiredRedisClient(context.Background(), cfg)
	assert.Error(t, err)
	_, _, err = ProvideRequiredPostgresClient(context.Background(), cfg)
	assert.Error(t, err)

	assert.Nil(t, ProvideRateLimiter(nil))
}

func TestProvideSessionKV(t *testing.T) {
	cfg := &config.Config{Session: config.SessionConfig{DraftTTL: time.Hour}}

	kv, cleanup := ProvideSessionKV(context.Background(), cfg, nil)
	_, ok := kv.(*memory.SessionKV)
	assert.True(t, ok)
	cleanup()

	mr := miniredis.RunT(t)
	rc := redis.NewClientFromRedis(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	defer rc.Close()

	kv, cleanup = ProvideSessionKV(context.Background(), cfg, rc)
	defer cleanup()
	_, ok = kv.(*redis.SessionKV)
	assert.True(t, ok)

	require.NoError(t, kv.Set(context.Background(), "tab", "k", []byte("v")))
	got, err := kv.Get(context.Background(), "tab", "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
	assert.NotNil(t, ProvideRateLimiter(rc))
}

func TestProvideObjectStore(t *testing.T) {
	store, err := ProvideObjectStore(context.Background(), &config.Config{Storage: config.StorageConfig{Driver: "none"}})
	require.NoError(t, err)
	assert.Nil(t, store)

	store, err = ProvideObjectStore(context.Background(), &config.Config{Storage: config.StorageConfig{
		Driver: "local",
		Local:  config.LocalConfig{Dir: t.TempDir(), PublicURL: "/static/images"},
	}})
	require.NoError(t, err)
	_, ok := store.(*local.Store)
	assert.True(t, ok)

	_, err = ProvideObjectStore(context.Background(), &config.Config{Storage: config.StorageConfig{Driver: "ftp"}})
	assert.Error(t, err)
}

func TestProvideModelClients_DemoWithoutKey(t *testing.T) {
	cfg := &config.Config{LLM: config.LLMConfig{
		DefaultProvider: "openai",
		Providers:       map[string]config.ProviderConfig{"openai": {Model: "gpt-4o-mini"}},
	}}
	factory := llm.NewEinoFactory(cfg)
	assert.Nil(t, ProvideModelLister(factory))
	assert.Nil(t, ProvideImageAPI(cfg, factory))

	cfg.LLM.Providers["openai"] = config.ProviderConfig{APIKey: "sk-test", Model: "gpt-4o-mini"}
	assert.NotNil(t, ProvideModelLister(factory))
	assert.NotNil(t, ProvideImageAPI(cfg, factory))
}

func TestProvideImageQueue_InlineWithoutRedis(t *testing.T) {
	processor := imagegen.NewProcessor(imagegen.NewRenderer(nil, nil, config.ImageConfig{}), memory.NewHistoryRepository())
	queue, cleanup := ProvideImageQueue(&config.Config{}, nil, processor)
	defer cleanup()
	_, ok := queue.(*imagegen.InlineDispatcher)
	assert.True(t, ok)
}

func TestProvideJWTManager_FallsBackToPassword(t *testing.T) {
	cfg := &config.Config{Security: config.SecurityConfig{
		Auth: config.AuthConfig{AccessPassword: "letmein"},
		JWT:  config.JWTConfig{Issuer: "rexi"},
	}}
	token, err := ProvideJWTManager(cfg).GenerateAccessToken("tab-1", time.Minute)
	require.NoError(t, err)

	_, err = utils.NewJWTManager("letmein", "rexi").ParseToken(token)
	assert.NoError(t, err)
}
