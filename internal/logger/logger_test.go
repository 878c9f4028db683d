package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap/zapcore"

	"github.com/itsmewidii/fitriacookry/internal/config"
)

func TestBuildConfig(t *testing.T) {
	prod := buildConfig(config.Observability{LogLevel: "WARN", LogEncoding: "json", Environment: "production"})
	assert.Equal(t, "json", prod.Encoding)
	assert.Equal(t, zapcore.WarnLevel, prod.Level.Level())
	assert.Equal(t, "ts", prod.EncoderConfig.TimeKey)
	assert.NotNil(t, prod.Sampling)

	local := buildConfig(config.Observability{LogLevel: "nonsense", LogEncoding: "json", Environment: "local"})
	assert.Equal(t, zapcore.InfoLevel, local.Level.Level())
	assert.Nil(t, local.Sampling)

	console := buildConfig(config.Observability{LogLevel: "debug", LogEncoding: "console"})
	assert.Equal(t, "console", console.Encoding)
	assert.Equal(t, zapcore.DebugLevel, console.Level.Level())
}

func TestNewRegistersLogger(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	logger, err := New(lc, config.Config{
		App:           config.App{Name: "Fitria Cookry"},
		Observability: config.Observability{ServiceName: "fitria-admin", Environment: "test", LogLevel: "error", LogEncoding: "json"},
	})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.ErrorLevel))
	lc.RequireStart().RequireStop()
}
