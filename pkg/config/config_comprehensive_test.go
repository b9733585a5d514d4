package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestLoadFromFile(t *testing.T) {
	t.Run("valid yaml file", func(t *testing.T) {
		tempDir := t.TempDir()
		configPath := filepath.Join(tempDir, "test_config.yaml")

		// Create test config
		testConfig := `
mapillary:
  access_token: MLY|file|token
  base_url: https://tiles.example.test
  tileset: mly1_public
  layer: image
  request_timeout: 45s

rate_limit:
  max_requests_per_minute: 30000
  safety_factor: 0.75
  requests_per_second: 120

retry:
  max_attempts: 5
  backoff_base: 500ms
  backoff_cap: 10s

probe:
  zoom: 12
  tiles: 500
  batch_size: 250
  concurrency: 64
  keep_coverage_on_error: false

database:
  path: /file/plants.db
  log_queries: true

metrics:
  enabled: true
  addr: 127.0.0.1:9200

notifications:
  enabled: true
  on_complete: false
  on_error: true
  notification_type: desktop

logging:
  level: warn
  file: /var/log/tilecov.log
`

		err := os.WriteFile(configPath, []byte(testConfig), 0644)
		require.NoError(t, err)

		cfg := DefaultConfig()
		err = cfg.LoadFromFile(configPath)
		require.NoError(t, err)

		// Verify all values were loaded
		assert.Equal(t, "MLY|file|token", cfg.Mapillary.AccessToken)
		assert.Equal(t, "https://tiles.example.test", cfg.Mapillary.BaseURL)
		assert.Equal(t, "mly1_public", cfg.Mapillary.Tileset)
		assert.Equal(t, "image", cfg.Mapillary.Layer)
		assert.Equal(t, 45*time.Second, cfg.Mapillary.RequestTimeout)

		assert.Equal(t, 30000, cfg.RateLimit.MaxRequestsPerMinute)
		assert.Equal(t, 0.75, cfg.RateLimit.SafetyFactor)
		assert.Equal(t, 120.0, cfg.RateLimit.RequestsPerSecond)

		assert.Equal(t, 5, cfg.Retry.MaxAttempts)
		assert.Equal(t, 500*time.Millisecond, cfg.Retry.BackoffBase)
		assert.Equal(t, 10*time.Second, cfg.Retry.BackoffCap)

		assert.Equal(t, 12, cfg.Probe.Zoom)
		assert.Equal(t, 500, cfg.Probe.Tiles)
		assert.Equal(t, 250, cfg.Probe.BatchSize)
		assert.Equal(t, 64, cfg.Probe.Concurrency)
		assert.False(t, cfg.Probe.KeepCoverageOnError)

		assert.Equal(t, "/file/plants.db", cfg.Database.Path)
		assert.True(t, cfg.Database.LogQueries)

		assert.True(t, cfg.Metrics.Enabled)
		assert.Equal(t, "127.0.0.1:9200", cfg.Metrics.Addr)

		assert.True(t, cfg.Notifications.Enabled)
		assert.False(t, cfg.Notifications.OnComplete)
		assert.True(t, cfg.Notifications.OnError)
		assert.Equal(t, "desktop", cfg.Notifications.NotificationType)

		assert.Equal(t, "warn", cfg.Logging.Level)
		assert.Equal(t, "/var/log/tilecov.log", cfg.Logging.File)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		tempDir := t.TempDir()
		configPath := filepath.Join(tempDir, "invalid.yaml")

		invalidYAML := `
mapillary:
  access_token: [this is invalid
`
		err := os.WriteFile(configPath, []byte(invalidYAML), 0644)
		require.NoError(t, err)

		cfg := DefaultConfig()
		err = cfg.LoadFromFile(configPath)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse config file")
	})

	t.Run("non-existent file", func(t *testing.T) {
		cfg := DefaultConfig()
		err := cfg.LoadFromFile("/non/existent/path/config.yaml")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read config file")
	})

	t.Run("empty path searches default locations", func(t *testing.T) {
		cfg := DefaultConfig()
		err := cfg.LoadFromFile("")
		// Should not error, just returns nil if no config found
		assert.NoError(t, err)
	})
}

func TestFindConfigFile(t *testing.T) {
	t.Run("finds config in current directory", func(t *testing.T) {
		tempDir := t.TempDir()
		oldDir, _ := os.Getwd()
		defer os.Chdir(oldDir)

		err := os.Chdir(tempDir)
		require.NoError(t, err)

		// Create config file
		configPath := filepath.Join(tempDir, ".tilecov.yaml")
		err = os.WriteFile(configPath, []byte("probe: {zoom: 9}"), 0644)
		require.NoError(t, err)

		cfg := DefaultConfig()
		found := cfg.findConfigFile()
		assert.Equal(t, ".tilecov.yaml", found)
	})

	t.Run("no config file found", func(t *testing.T) {
		tempDir := t.TempDir()
		oldDir, _ := os.Getwd()
		defer os.Chdir(oldDir)

		err := os.Chdir(tempDir)
		require.NoError(t, err)

		cfg := DefaultConfig()
		found := cfg.findConfigFile()
		assert.Empty(t, found)
	})
}

func TestSave(t *testing.T) {
	t.Run("save to new file", func(t *testing.T) {
		tempDir := t.TempDir()
		configPath := filepath.Join(tempDir, "saved_config.yaml")

		cfg := DefaultConfig()
		cfg.Mapillary.AccessToken = "MLY|save|token"
		cfg.Probe.Zoom = 13

		err := cfg.Save(configPath)
		require.NoError(t, err)

		// Verify file exists
		_, err = os.Stat(configPath)
		assert.NoError(t, err)

		// Load and verify
		loadedCfg := DefaultConfig()
		err = loadedCfg.LoadFromFile(configPath)
		require.NoError(t, err)

		assert.Equal(t, cfg.Mapillary.AccessToken, loadedCfg.Mapillary.AccessToken)
		assert.Equal(t, cfg.Probe.Zoom, loadedCfg.Probe.Zoom)
	})

	t.Run("creates directory if needed", func(t *testing.T) {
		tempDir := t.TempDir()
		configPath := filepath.Join(tempDir, "subdir", "config.yaml")

		cfg := DefaultConfig()
		err := cfg.Save(configPath)
		require.NoError(t, err)

		// Verify directory was created
		_, err = os.Stat(filepath.Dir(configPath))
		assert.NoError(t, err)
	})

	t.Run("overwrites existing file", func(t *testing.T) {
		tempDir := t.TempDir()
		configPath := filepath.Join(tempDir, "config.yaml")

		// Create initial file
		cfg1 := DefaultConfig()
		cfg1.Database.Path = "first.db"
		err := cfg1.Save(configPath)
		require.NoError(t, err)

		// Overwrite with new config
		cfg2 := DefaultConfig()
		cfg2.Database.Path = "second.db"
		err = cfg2.Save(configPath)
		require.NoError(t, err)

		// Load and verify
		loadedCfg := DefaultConfig()
		err = loadedCfg.LoadFromFile(configPath)
		require.NoError(t, err)

		assert.Equal(t, "second.db", loadedCfg.Database.Path)
	})
}

func TestLoad(t *testing.T) {
	t.Run("precedence order", func(t *testing.T) {
		tempDir := t.TempDir()

		// Create config file
		configPath := filepath.Join(tempDir, "config.yaml")
		configContent := `
mapillary:
  access_token: MLY|file|token
probe:
  zoom: 10
database:
  path: /file/plants.db
`
		err := os.WriteFile(configPath, []byte(configContent), 0644)
		require.NoError(t, err)

		// Set environment variables
		os.Setenv("MAPILLARY_ACCESS_TOKEN", "MLY|env|token")
		os.Setenv("TILECOV_DB_PATH", "/env/plants.db")
		defer os.Unsetenv("MAPILLARY_ACCESS_TOKEN")
		defer os.Unsetenv("TILECOV_DB_PATH")

		// Command line flags
		flags := map[string]interface{}{
			"access-token": "MLY|flag|token",
		}

		cfg, err := Load(configPath, flags)
		require.NoError(t, err)

		// Verify precedence: flags > env > file > defaults
		assert.Equal(t, "MLY|flag|token", cfg.Mapillary.AccessToken) // From flags
		assert.Equal(t, "/env/plants.db", cfg.Database.Path)         // From env (no flag)
		assert.Equal(t, 10, cfg.Probe.Zoom)                          // From file (no env or flag)
	})

	t.Run("validation failure", func(t *testing.T) {
		flags := map[string]interface{}{
			"log-level": "bogus",
		}

		cfg, err := Load("", flags)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "configuration validation failed")
		assert.Nil(t, cfg)
	})

	t.Run("loads .env file", func(t *testing.T) {
		tempDir := t.TempDir()
		oldDir, _ := os.Getwd()
		defer os.Chdir(oldDir)

		err := os.Chdir(tempDir)
		require.NoError(t, err)

		// Create .env file
		envContent := `MAPILLARY_ACCESS_TOKEN=MLY|dotenv|token
TILECOV_LOG_LEVEL=debug`
		err = os.WriteFile(".env", []byte(envContent), 0644)
		require.NoError(t, err)

		// Clear any existing env vars
		os.Unsetenv("MAPILLARY_ACCESS_TOKEN")
		os.Unsetenv("TILECOV_LOG_LEVEL")
		defer os.Unsetenv("MAPILLARY_ACCESS_TOKEN")
		defer os.Unsetenv("TILECOV_LOG_LEVEL")

		cfg, err := Load("", nil)
		require.NoError(t, err)

		assert.Equal(t, "MLY|dotenv|token", cfg.Mapillary.AccessToken)
		assert.Equal(t, "debug", cfg.Logging.Level)
	})
}

func TestConfigSerialization(t *testing.T) {
	t.Run("yaml round trip", func(t *testing.T) {
		original := DefaultConfig()
		original.Mapillary.AccessToken = "MLY|roundtrip|token"
		original.RateLimit.MaxRequestsPerMinute = 45000
		original.Probe.Concurrency = 128

		// Marshal to YAML
		data, err := yaml.Marshal(original)
		require.NoError(t, err)

		// Unmarshal back
		var loaded Config
		err = yaml.Unmarshal(data, &loaded)
		require.NoError(t, err)

		// Compare key fields
		assert.Equal(t, original.Mapillary.AccessToken, loaded.Mapillary.AccessToken)
		assert.Equal(t, original.RateLimit.MaxRequestsPerMinute, loaded.RateLimit.MaxRequestsPerMinute)
		assert.Equal(t, original.Probe.Concurrency, loaded.Probe.Concurrency)
	})
}

func TestDurationParsing(t *testing.T) {
	t.Run("parse duration from yaml", func(t *testing.T) {
		yamlContent := `
mapillary:
  request_timeout: 45s
retry:
  backoff_base: 500ms
  backoff_cap: 1m30s
`
		var cfg Config
		err := yaml.Unmarshal([]byte(yamlContent), &cfg)
		require.NoError(t, err)

		assert.Equal(t, 45*time.Second, cfg.Mapillary.RequestTimeout)
		assert.Equal(t, 500*time.Millisecond, cfg.Retry.BackoffBase)
		assert.Equal(t, 90*time.Second, cfg.Retry.BackoffCap)
	})
}

// Benchmark tests
func BenchmarkDefaultConfig(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = DefaultConfig()
	}
}

func BenchmarkValidate(b *testing.B) {
	cfg := DefaultConfig()
	cfg.Mapillary.AccessToken = "MLY|bench|token"

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_ = cfg.Validate()
	}
}

func BenchmarkLoadFromEnv(b *testing.B) {
	os.Setenv("MAPILLARY_ACCESS_TOKEN", "MLY|bench|token")
	defer os.Unsetenv("MAPILLARY_ACCESS_TOKEN")

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		cfg := DefaultConfig()
		_ = cfg.LoadFromEnv()
	}
}

func BenchmarkSaveAndLoad(b *testing.B) {
	tempDir := b.TempDir()
	configPath := filepath.Join(tempDir, "bench_config.yaml")

	cfg := DefaultConfig()
	cfg.Mapillary.AccessToken = "MLY|bench|token"

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_ = cfg.Save(configPath)
		loadedCfg := DefaultConfig()
		_ = loadedCfg.LoadFromFile(configPath)
	}
}
