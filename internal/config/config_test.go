package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_DefaultValues(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.RunAddr)
	assert.Equal(t, "http://localhost:8080", cfg.BaseURL)
	assert.Equal(t, DefaultPrefix, cfg.Prefix)
	assert.Equal(t, DefaultWorkerName, cfg.WorkerName)
	assert.Equal(t, 15*time.Second, cfg.UIBudget)
	assert.Equal(t, 10*time.Second, cfg.PublishDebounce)
	assert.Equal(t, "@hourly", cfg.ReconcileSchedule)
	assert.Equal(t, 90, cfg.StatsRetentionDays)
	assert.Equal(t, "memory", cfg.SecretBackend)
	assert.Equal(t, "localhost", cfg.Host())
}

func TestConfig_Precedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "edgelink.yaml")
	yml := "prefix: links\nui_budget: 5s\nstats_retention_days: 30\nbase_url: https://file.example.com\n"
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	t.Setenv("BASE_URL", "https://env.example.com")
	t.Setenv("SERVER_ADDRESS", "9090")
	t.Setenv("PUBLISH_DEBOUNCE", "3s")

	cfg, err := Load([]string{"-c", path, "-a", ":7070"})
	require.NoError(t, err)

	// файл
	assert.Equal(t, "links", cfg.Prefix)
	assert.Equal(t, 5*time.Second, cfg.UIBudget)
	assert.Equal(t, 30, cfg.StatsRetentionDays)
	// окружение важнее файла
	assert.Equal(t, "https://env.example.com", cfg.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.PublishDebounce)
	// явный флаг важнее окружения
	assert.Equal(t, ":7070", cfg.RunAddr)
}

func TestConfig_FlagsNotSetKeepEnvironment(t *testing.T) {
	t.Setenv("DATABASE_DSN", "postgres://env")

	cfg, err := Load([]string{"-b", "shop.example.com"})
	require.NoError(t, err)
	assert.Equal(t, "postgres://env", cfg.DatabaseDSN)
	assert.Equal(t, "http://shop.example.com", cfg.BaseURL)
	assert.Equal(t, "shop.example.com", cfg.Host())
}

func TestConfig_Normalize(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		expected Config
	}{
		{
			name:     "Port without colon",
			cfg:      Config{RunAddr: "9090", BaseURL: "http://example.com", Prefix: "go"},
			expected: Config{RunAddr: ":9090", BaseURL: "http://example.com", Prefix: "go"},
		},
		{
			name:     "URL without protocol",
			cfg:      Config{RunAddr: ":8080", BaseURL: "example.com/", Prefix: "go"},
			expected: Config{RunAddr: ":8080", BaseURL: "http://example.com", Prefix: "go"},
		},
		{
			name:     "Prefix with slashes",
			cfg:      Config{RunAddr: "localhost:9090", BaseURL: "https://example.com", Prefix: "/Links/"},
			expected: Config{RunAddr: "localhost:9090", BaseURL: "https://example.com", Prefix: "links"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			cfg.normalize()
			assert.Equal(t, tt.expected, cfg)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Run("unknown secret backend", func(t *testing.T) {
		t.Setenv("SECRET_BACKEND", "etcd")
		_, err := Load(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "SecretBackend")
	})

	t.Run("file backend requires path", func(t *testing.T) {
		t.Setenv("SECRET_BACKEND", "file")
		_, err := Load(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "SecretPath")
	})

	t.Run("bad trusted subnet", func(t *testing.T) {
		_, err := Load([]string{"-t", "10.0.0.1"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "TrustedSubnet")
	})

	t.Run("unknown flag", func(t *testing.T) {
		_, err := Load([]string{"-x"})
		assert.Error(t, err)
	})
}

func TestConfig_WeakJWTSecret(t *testing.T) {
	cfg := Default()
	assert.True(t, cfg.WeakJWTSecret())

	cfg.JWTSecret = "v9#Lq2!mZr8@Wt5^Kc1&Pn7*Hd4"
	assert.False(t, cfg.WeakJWTSecret())

	cfg.JWTSecret = ""
	assert.False(t, cfg.WeakJWTSecret())
}

func TestSettings_RoutePattern(t *testing.T) {
	s := Settings{Host: "example.com", Prefix: "go", WorkerName: DefaultWorkerName}
	assert.Equal(t, "example.com/go/*", s.RoutePattern())
	assert.Equal(t, "example.com/links/*", s.RoutePatternFor("/links/"))
	assert.Equal(t, "edgelink:lock:example.com", Settings{Host: "Example.COM"}.LockKey())
}
