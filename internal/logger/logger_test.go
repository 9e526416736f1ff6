package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap/zapcore"

	"github.com/Additional-Code/orderbook/internal/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel(" warn "))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel(""))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("chatty"))
}

func TestBuild(t *testing.T) {
	for _, encoding := range []string{"json", "console"} {
		t.Run(encoding, func(t *testing.T) {
			logger, err := Build(config.Observability{
				ServiceName: "orderbook",
				Environment: "test",
				LogLevel:    "error",
				LogEncoding: encoding,
			})
			require.NoError(t, err)
			assert.False(t, logger.Core().Enabled(zapcore.WarnLevel))
			assert.True(t, logger.Core().Enabled(zapcore.ErrorLevel))
		})
	}
}

func TestNewSyncsOnStop(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	logger, err := New(lc, config.Config{Observability: config.Observability{LogEncoding: "json"}})
	require.NoError(t, err)
	require.NotNil(t, logger)
	lc.RequireStart().RequireStop()
}
