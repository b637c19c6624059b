package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmerrifield20/rtcmas/internal/config"
)

func TestLoad_defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := config.Load(config.New(""))
	require.NoError(t, err)

	assert.Empty(t, cfg.File)
	assert.Equal(t, "0.0.0.0:5000", cfg.Server.Addr())
	assert.Equal(t, 20.0, cfg.Server.RateLimitRPS)
	assert.True(t, cfg.GRPC.Enabled)
	assert.Equal(t, 9090, cfg.GRPC.Port)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "dataset/rtcmas.db", cfg.Store.SQLitePath)
	assert.True(t, cfg.Store.ForceRefresh)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 10*time.Second, cfg.Alerts.Timeout)
	assert.Empty(t, cfg.Alerts.WebhookURLs)
	assert.Equal(t, time.Minute, cfg.Health.CheckInterval)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_fileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rtcmas.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 8080
store:
  driver: memory
alerts:
  webhook_urls:
    - http://soc.example/hook
  timeout: 3s
`), 0o600))

	t.Setenv("RTCMAS_SERVER_PORT", "6000")
	t.Setenv("RTCMAS_LOG_LEVEL", "debug")

	cfg, err := config.Load(config.New(path))
	require.NoError(t, err)

	assert.Equal(t, path, cfg.File)
	assert.Equal(t, 6000, cfg.Server.Port, "env overrides file")
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, []string{"http://soc.example/hook"}, cfg.Alerts.WebhookURLs)
	assert.Equal(t, 3*time.Second, cfg.Alerts.Timeout)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_searchPath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "configs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "configs", "rtcmas.yaml"), []byte("grpc:\n  enabled: false\n"), 0o600))
	t.Chdir(dir)

	cfg, err := config.Load(config.New(""))
	require.NoError(t, err)
	assert.False(t, cfg.GRPC.Enabled)
	assert.NotEmpty(t, cfg.File)
}

func TestLoad_missingExplicitFile(t *testing.T) {
	_, err := config.Load(config.New(filepath.Join(t.TempDir(), "nope.yaml")))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *config.Config {
		return &config.Config{
			Server: config.ServerConfig{Port: 5000},
			GRPC:   config.GRPCConfig{Port: 9090, GatewayPort: 9091},
			Store:  config.StoreConfig{Driver: "memory"},
			Health: config.HealthConfig{FailThreshold: 3},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(c *config.Config)
	}{
		{"unknown driver", func(c *config.Config) { c.Store.Driver = "mysql" }},
		{"sqlite without path", func(c *config.Config) { c.Store.Driver = "sqlite" }},
		{"postgres without url", func(c *config.Config) { c.Store.Driver = "postgres" }},
		{"port zero", func(c *config.Config) { c.Server.Port = 0 }},
		{"gateway port too high", func(c *config.Config) { c.GRPC.GatewayPort = 70000 }},
		{"negative rate", func(c *config.Config) { c.Server.RateLimitRPS = -1 }},
		{"zero threshold", func(c *config.Config) { c.Health.FailThreshold = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
