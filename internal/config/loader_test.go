package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("REXI_TEST_PORT", "9090")

	assert.Equal(t, "port: 9090", expandEnv("port: ${REXI_TEST_PORT:8080}"))
	assert.Equal(t, "host: localhost", expandEnv("host: ${REXI_TEST_UNSET_HOST:localhost}"))
	assert.Equal(t, "key: ${REXI_TEST_UNSET_KEY}", expandEnv("key: ${REXI_TEST_UNSET_KEY}"))
	assert.Equal(t, "empty: ", expandEnv("empty: ${REXI_TEST_UNSET_EMPTY:}"))
}

func TestLoadFrom_DefaultsAndOverlay(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("APP_ENV", "test")
	t.Setenv("REXI_TEST_STORAGE", "local")

	writeConfig(t, dir, "config.yaml", `
app:
  name: rexi-api
session:
  poll_interval: 5s
storage:
  driver: ${REXI_TEST_STORAGE:none}
`)
	writeConfig(t, dir, "config.test.yaml", `
session:
  save_debounce: 10ms
`)

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, "rexi-api", cfg.App.Name)
	assert.Equal(t, 5*time.Second, cfg.Session.PollInterval)
	assert.Equal(t, 10*time.Millisecond, cfg.Session.SaveDebounce)
	assert.Equal(t, "local", cfg.Storage.Driver)

	// 未配置项回落到默认值
	assert.Equal(t, 10*time.Minute, cfg.LLM.ModelChoiceTTL)
	assert.Equal(t, 30, cfg.Session.VersePollAttempts)
	assert.Equal(t, 3000, cfg.LinkParse.MaxChars)
	assert.Equal(t, "auth_token", cfg.Security.Auth.CookieName)
}

func TestLoadFrom_MissingBaseFile(t *testing.T) {
	_, err := LoadFrom(t.TempDir())
	assert.Error(t, err)
}

func TestPostgresConfig_DSN(t *testing.T) {
	c := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "rexi", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=rexi sslmode=disable", c.DSN())
}
