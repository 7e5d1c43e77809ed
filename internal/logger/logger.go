package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"casedata/config"

	"gopkg.in/natefinch/lumberjack.v2"
)

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// New builds a logger from the configuration. The returned closer
// releases the log file when output goes to a file.
func New(cfg config.LoggingConfig) (*slog.Logger, io.Closer) {
	var w io.WriteCloser = nopCloser{os.Stdout}

	if strings.EqualFold(cfg.Output, "file") && cfg.FilePath != "" {
		w = &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize, // megabytes
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge, // days
			Compress:   cfg.Compress,
		}
	}

	return slog.New(newHandler(w, cfg)), w
}

// Setup initializes the global logger based on the configuration.
func Setup(cfg config.LoggingConfig) io.Closer {
	logger, closer := New(cfg)
	slog.SetDefault(logger)
	return closer
}

func newHandler(w io.Writer, cfg config.LoggingConfig) slog.Handler {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// ParseLevel maps a configured level name to a slog level, falling back
// to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
