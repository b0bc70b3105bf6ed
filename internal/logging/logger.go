// Package logging provides zap logger helpers.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// L is the shared application logger. It is a no-op logger until
// InitLogger is called, so packages can log safely during early startup.
var L = zap.NewNop()

// InitLogger replaces L with a fully configured logger. It is meant to be
// called exactly once, at the very start of command execution.
func InitLogger(development bool) {
	logger, err := New(development)
	if err != nil {
		// Logging must never prevent the process from starting.
		logger = zap.NewNop()
	}
	L = logger
}

// newConfig returns the service's zap configuration: JSON with ISO-8601
// timestamps in production, the colored console encoder in development.
func newConfig(development bool) zap.Config {
	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.MessageKey = "msg"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg
}

// New builds a zap.Logger for the ingestion service. Production loggers
// carry a service tag on every entry.
func New(development bool) (*zap.Logger, error) {
	var opts []zap.Option
	if !development {
		opts = append(opts, zap.Fields(zap.String("service", "dexingest")))
	}
	logger, err := newConfig(development).Build(opts...)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
