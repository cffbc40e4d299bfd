package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/Additional-Code/dialtone/internal/config"
)

func TestBuildParsesLevel(t *testing.T) {
	logger, level, err := Build(config.Observability{ServiceName: "dialtone", LogLevel: "WARN", LogEncoding: "json"})
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, level.Level())
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))

	level.SetLevel(zapcore.DebugLevel)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel), "level changes apply to the built logger")
}

func TestBuildFallsBackToInfo(t *testing.T) {
	_, level, err := Build(config.Observability{LogLevel: "chatty", LogEncoding: "console"})
	require.NoError(t, err)
	assert.Equal(t, zapcore.InfoLevel, level.Level())
}
