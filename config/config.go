package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Updates  UpdatesConfig  `mapstructure:"updates"`
	Schemas  SchemasConfig  `mapstructure:"schemas"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	ConnectionString string `mapstructure:"connection_string"`
	DatabaseName     string `mapstructure:"database_name"`
}

// StorageConfig selects where case data and schemas live.
type StorageConfig struct {
	Type         string          `mapstructure:"type"` // mongodb, file
	File         FileStoreConfig `mapstructure:"file"`
	DisableCache bool            `mapstructure:"disable_cache"`
}

// FileStoreConfig holds the file system storage configuration.
type FileStoreConfig struct {
	Path string `mapstructure:"path"`
}

// UpdatesConfig controls retries of concurrent case data updates.
// MaxRetries is a pointer so an explicit 0 survives defaulting.
type UpdatesConfig struct {
	MaxRetries    *uint64       `mapstructure:"max_retries"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
}

// SchemasConfig holds the schema seeding configuration.
type SchemasConfig struct {
	SeedDir string `mapstructure:"seed_dir"`
}

// LoggingConfig holds the logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, text
	Output     string `mapstructure:"output"`      // stdout, file
	FilePath   string `mapstructure:"file_path"`   // Path to log file
	MaxSize    int    `mapstructure:"max_size"`    // Megabytes
	MaxBackups int    `mapstructure:"max_backups"` // Number of backups
	MaxAge     int    `mapstructure:"max_age"`     // Days
	Compress   bool   `mapstructure:"compress"`    // Compress backups
}

// DefaultConfig returns the values used for every setting left empty.
func DefaultConfig() Config {
	maxRetries := uint64(5)
	return Config{
		Server: ServerConfig{Port: 8080},
		Database: DatabaseConfig{
			ConnectionString: "mongodb://localhost:27017",
			DatabaseName:     "casedata",
		},
		Storage: StorageConfig{
			Type: "file",
			File: FileStoreConfig{Path: "./data"},
		},
		Updates: UpdatesConfig{
			MaxRetries:    &maxRetries,
			RetryInterval: 50 * time.Millisecond,
		},
		Schemas: SchemasConfig{SeedDir: "./schemas"},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stdout",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     28,
		},
	}
}

// envKeys are bound explicitly so environment variables apply even when
// the config file leaves a key out.
var envKeys = []string{
	"server.port",
	"database.connection_string",
	"database.database_name",
	"storage.type",
	"storage.file.path",
	"storage.disable_cache",
	"updates.max_retries",
	"updates.retry_interval",
	"schemas.seed_dir",
	"logging.level",
	"logging.format",
	"logging.output",
	"logging.file_path",
	"logging.max_size",
	"logging.max_backups",
	"logging.max_age",
	"logging.compress",
}

// LoadConfig reads the configuration from config files and environment
// variables. A missing config file is not an error; defaults apply.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")
	v.AddConfigPath("../..") // Check project root if running from cmd/casedata
	return load(v)
}

// LoadConfigFile reads the configuration from the given file and
// environment variables.
func LoadConfigFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("CASEDATA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := mergo.Merge(&cfg, DefaultConfig(), mergo.WithoutDereference); err != nil {
		return nil, fmt.Errorf("failed to apply config defaults: %w", err)
	}

	switch cfg.Storage.Type {
	case "file", "mongodb":
	default:
		return nil, fmt.Errorf("unsupported storage type %q", cfg.Storage.Type)
	}

	return &cfg, nil
}
