// Package logger holds the process-wide zap logger
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the process-wide logger. It is a no-op logger until Init is called.
var Logger = zap.NewNop()

// Init builds the process-wide logger for the given level.
// Unknown levels fall back to info.
func Init(level string) error {
	l, err := New(level, "json")
	if err != nil {
		return err
	}
	Logger = l
	return nil
}

// New builds a zap logger with the given level and encoding ("json" or "console")
func New(level, encoding string) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if encoding == "console" {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.Encoding = "console"
	}

	if err := zapCfg.Level.UnmarshalText([]byte(level)); err != nil {
		zapCfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	zapCfg.EncoderConfig.TimeKey = "timestamp"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return zapCfg.Build()
}

// Sync flushes buffered log entries
func Sync() {
	_ = Logger.Sync()
}
