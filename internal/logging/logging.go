// Package logging provides structured logging setup for the evaluation
// core.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds logging configuration.
type Config struct {
	Level      string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Console    bool   `yaml:"console"`
	File       bool   `yaml:"file"`
	FilePath   string `yaml:"file_path"`
	MaxSizeMB  int    `yaml:"max_size_mb" validate:"omitempty,min=1"`
	MaxBackups int    `yaml:"max_backups" validate:"omitempty,min=0"`
	MaxAgeDays int    `yaml:"max_age_days" validate:"omitempty,min=0"`
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		Level:      "info",
		Console:    true,
		File:       true,
		FilePath:   filepath.Join(home, ".config", "go-council", "logs", "council.log"),
		MaxSizeMB:  100,
		MaxBackups: 7,
		MaxAgeDays: 30,
	}
}

// NewLogger creates a logger with default configuration.
func NewLogger() zerolog.Logger {
	return NewLoggerWithConfig(DefaultConfig())
}

// NewLoggerWithConfig creates a logger writing to the console and/or a
// rotated JSON file, per the configuration.
func NewLoggerWithConfig(cfg Config) zerolog.Logger {
	var writers []io.Writer

	if cfg.Console {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}

	if cfg.File && cfg.FilePath != "" {
		logDir := filepath.Dir(cfg.FilePath)
		if err := os.MkdirAll(logDir, 0o755); err == nil {
			writers = append(writers, &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSizeMB,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAgeDays,
				Compress:   true,
			})
		}
	}

	var writer io.Writer
	switch len(writers) {
	case 0:
		writer = os.Stdout
	case 1:
		writer = writers[0]
	default:
		writer = zerolog.MultiLevelWriter(writers...)
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	return zerolog.New(writer).
		With().
		Timestamp().
		Logger()
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithProvider returns a child logger tagged with a provider name.
func WithProvider(logger zerolog.Logger, provider string) zerolog.Logger {
	return logger.With().Str("provider", provider).Logger()
}

// WithSymbol returns a child logger tagged with a ticker symbol.
func WithSymbol(logger zerolog.Logger, symbol string) zerolog.Logger {
	return logger.With().Str("symbol", symbol).Logger()
}

// LogEvaluation logs the outcome of one ensemble evaluation.
func LogEvaluation(logger zerolog.Logger, evaluationID, symbol string, consensus float64, shouldTrade bool, compliant, total int) {
	logger.Info().
		Str("event", "evaluation").
		Str("evaluation_id", evaluationID).
		Str("symbol", symbol).
		Float64("consensus_score", consensus).
		Bool("should_trade", shouldTrade).
		Int("compliant_providers", compliant).
		Int("total_providers", total).
		Msg("ensemble evaluation complete")
}
