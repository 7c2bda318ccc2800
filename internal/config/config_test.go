package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.Addr)
	assert.Equal(t, "apphost", cfg.ServiceName)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL.Std())
	assert.Empty(t, cfg.Redis.Addr)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
addr: ":9090"
service_name: taskboard
widget_domain: https://widgets.example.com
connect_origins:
  - https://api.example.com
session_ttl: 15m
redis:
  addr: localhost:6379
  db: 2
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "taskboard", cfg.ServiceName)
	assert.Equal(t, "https://widgets.example.com", cfg.WidgetDomain)
	assert.Equal(t, []string{"https://api.example.com"}, cfg.ConnectOrigins)
	assert.Equal(t, 15*time.Minute, cfg.SessionTTL.Std())
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, "config.json", `{"addr":":7070","session_ttl":"1h"}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Addr)
	assert.Equal(t, time.Hour, cfg.SessionTTL.Std())
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8000", cfg.Addr)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", "addr: [unclosed")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeFile(t, "config.yaml", `addr: ":9090"`)
	t.Setenv("APPHOST_ADDR", ":6060")
	t.Setenv("APPHOST_REDIS_ADDR", "redis:6379")
	t.Setenv("APPHOST_SESSION_TTL", "5m")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":6060", cfg.Addr)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 5*time.Minute, cfg.SessionTTL.Std())
}
