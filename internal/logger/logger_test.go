package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"jointvibe/internal/config"
)

func TestNewLogger(t *testing.T) {
	l, err := NewLogger(config.AppConfig{Mode: "PROD", LogLevel: "warn"})
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zap.InfoLevel))
	assert.True(t, l.Core().Enabled(zap.WarnLevel))

	l, err = NewLogger(config.AppConfig{Mode: "dev", LogLevel: "debug"})
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zap.DebugLevel))

	_, err = NewLogger(config.AppConfig{Mode: "DEV", LogLevel: "loud"})
	assert.Error(t, err)
}
