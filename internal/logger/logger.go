package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"jointvibe/internal/config"
)

// ModeDevelop selects the human readable console logger.
const ModeDevelop = "DEV"

// NewLogger builds the process logger: coloured console output in DEV mode,
// JSON otherwise.
func NewLogger(conf config.AppConfig) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(conf.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", conf.LogLevel, err)
	}

	if strings.EqualFold(conf.Mode, ModeDevelop) {
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = lvl
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return cfg.Build()
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}
