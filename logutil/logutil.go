// Package logutil builds the zap loggers used by the dhash tools.
package logutil

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Config describes where and how to log. An empty Filename logs to stderr.
type Config struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	Filename   string `toml:"filename"`
	MaxSize    int    `toml:"max-size"`
	MaxBackups int    `toml:"max-backups"`
	MaxAge     int    `toml:"max-age"`
}

// DefaultConfig logs at info level to stderr in console format.
func DefaultConfig() Config {
	return Config{
		Level:   "info",
		Format:  FormatConsole,
		MaxSize: 64,
	}
}

// Validate reports an unknown level or format and negative rotation limits.
func (c Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.Level); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.Level, err)
	}
	switch strings.ToLower(c.Format) {
	case FormatConsole, FormatJSON:
	default:
		return fmt.Errorf("invalid log format %q", c.Format)
	}
	if c.MaxSize < 0 || c.MaxBackups < 0 || c.MaxAge < 0 {
		return fmt.Errorf("log rotation limits must not be negative")
	}
	return nil
}

// NewLogger creates a logger from cfg. Log files are rotated by lumberjack.
func NewLogger(cfg Config) (*zap.Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	level, _ := zapcore.ParseLevel(cfg.Level)

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if strings.ToLower(cfg.Format) == FormatJSON {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	return zap.New(zapcore.NewCore(enc, writeSyncer(cfg), level), zap.AddCaller()), nil
}

func writeSyncer(cfg Config) zapcore.WriteSyncer {
	if cfg.Filename == "" {
		return zapcore.Lock(os.Stderr)
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.Filename,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
	})
}
