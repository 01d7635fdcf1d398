package app

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"capgate/internal/infra/telemetry"
)

// LoggingConfig configures logging wiring.
type LoggingConfig struct {
	Logger *zap.Logger
	Debug  bool
}

// Logging bundles the root logger.
type Logging struct {
	Logger *zap.Logger
}

// NewLogging constructs logging dependencies. Logs go to stderr because
// stdout carries the MCP stdio transport.
func NewLogging(cfg LoggingConfig) (Logging, error) {
	logger := cfg.Logger
	if logger == nil {
		built, err := buildLogger(cfg.Debug)
		if err != nil {
			return Logging{}, err
		}
		logger = built
	}
	logger = logger.With(zap.String(telemetry.FieldLogSource, telemetry.LogSourceCore)).Named("app")
	return Logging{Logger: logger}, nil
}

func buildLogger(debug bool) (*zap.Logger, error) {
	var zcfg zap.Config
	if debug {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

// NewLogger returns the logger from a Logging bundle.
func NewLogger(logging Logging) *zap.Logger {
	return logging.Logger
}
