package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigFile(t *testing.T) {
	// Setup
	t.Setenv("CASEDATA_SERVER_PORT", "9090")
	t.Setenv("CASEDATA_DATABASE_CONNECTION_STRING", "mongodb://test:27017")
	t.Setenv("CASEDATA_UPDATES_RETRY_INTERVAL", "250ms")

	path := writeConfig(t, "server:\n  port: 8080\ndatabase:\n  connection_string: \"default\"\n  database_name: \"testdb\"\nstorage:\n  type: mongodb\n")

	// Execute
	cfg, err := LoadConfigFile(path)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port) // Env var should override file
	assert.Equal(t, "mongodb://test:27017", cfg.Database.ConnectionString)
	assert.Equal(t, "testdb", cfg.Database.DatabaseName)
	assert.Equal(t, "mongodb", cfg.Storage.Type)
	assert.Equal(t, 250*time.Millisecond, cfg.Updates.RetryInterval)
}

func TestLoadConfigFile_Defaults(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: debug\n")

	cfg, err := LoadConfigFile(path)

	require.NoError(t, err)
	defaults := DefaultConfig()
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, defaults.Logging.Format, cfg.Logging.Format)
	assert.Equal(t, defaults.Server.Port, cfg.Server.Port)
	assert.Equal(t, "file", cfg.Storage.Type)
	assert.Equal(t, "./data", cfg.Storage.File.Path)
	require.NotNil(t, cfg.Updates.MaxRetries)
	assert.Equal(t, uint64(5), *cfg.Updates.MaxRetries)
	assert.Equal(t, "./schemas", cfg.Schemas.SeedDir)
}

func TestLoadConfigFile_ExplicitZeroRetries(t *testing.T) {
	path := writeConfig(t, "updates:\n  max_retries: 0\n")

	cfg, err := LoadConfigFile(path)

	require.NoError(t, err)
	require.NotNil(t, cfg.Updates.MaxRetries)
	assert.Equal(t, uint64(0), *cfg.Updates.MaxRetries)
	assert.Equal(t, 50*time.Millisecond, cfg.Updates.RetryInterval)
}

func TestLoadConfigFile_LoggingEnv(t *testing.T) {
	t.Setenv("CASEDATA_UPDATES_MAX_RETRIES", "0")
	t.Setenv("CASEDATA_LOGGING_MAX_SIZE", "10")
	t.Setenv("CASEDATA_LOGGING_MAX_BACKUPS", "7")
	t.Setenv("CASEDATA_LOGGING_MAX_AGE", "2")
	t.Setenv("CASEDATA_LOGGING_COMPRESS", "true")
	path := writeConfig(t, "logging:\n  output: file\n")

	cfg, err := LoadConfigFile(path)

	require.NoError(t, err)
	assert.Equal(t, uint64(0), *cfg.Updates.MaxRetries)
	assert.Equal(t, 10, cfg.Logging.MaxSize)
	assert.Equal(t, 7, cfg.Logging.MaxBackups)
	assert.Equal(t, 2, cfg.Logging.MaxAge)
	assert.True(t, cfg.Logging.Compress)
}

func TestLoadConfigFile_Errors(t *testing.T) {
	t.Run("Unsupported storage type", func(t *testing.T) {
		path := writeConfig(t, "storage:\n  type: redis\n")
		_, err := LoadConfigFile(path)
		assert.ErrorContains(t, err, "unsupported storage type")
	})

	t.Run("Malformed file", func(t *testing.T) {
		path := writeConfig(t, "server: [\n")
		_, err := LoadConfigFile(path)
		assert.Error(t, err)
	})
}

func TestLoadConfig_NoFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CASEDATA_STORAGE_FILE_PATH", "/var/lib/casedata")

	cfg, err := LoadConfig()

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "/var/lib/casedata", cfg.Storage.File.Path)
}
