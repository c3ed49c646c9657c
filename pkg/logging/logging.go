// Package logging constructs the agent's structured logger. It mirrors the
// teacher repository's comp/core/log component: zap.Logger for the hot
// path, backed by a rotated file sink, with stderr always attached so a
// foreground run still sees output.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Config controls where and how logs are written.
type Config struct {
	// FilePath is the rotated log file destination. Empty disables the
	// file sink and logs go to stderr only.
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Level      string
}

// New builds a *zap.Logger per cfg. name becomes the logger name, written
// under the "logger" key of every line, replacing the original implementation's bracketed
// "[DBWriter]"-style string prefixes.
func New(cfg Config, name string) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.Set(cfg.Level); err != nil {
			return nil, err
		}
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderCfg),
			zapcore.Lock(zapcore.AddSync(os.Stderr)),
			level,
		),
	}

	if cfg.FilePath != "" {
		sink := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    orDefault(cfg.MaxSizeMB, 100),
			MaxBackups: orDefault(cfg.MaxBackups, 5),
			MaxAge:     orDefault(cfg.MaxAgeDays, 28),
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderCfg),
			zapcore.AddSync(sink),
			level,
		))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	return logger.Named(name), nil
}

func orDefault(v, d int) int {
	if v <= 0 {
		return d
	}
	return v
}
