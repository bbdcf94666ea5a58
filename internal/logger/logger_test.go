package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		encoding string
		enabled  zapcore.Level
		disabled []zapcore.Level
	}{
		{name: "debug json", level: "debug", encoding: "json", enabled: zapcore.DebugLevel},
		{name: "warn console", level: "warn", encoding: "console", enabled: zapcore.WarnLevel, disabled: []zapcore.Level{zapcore.InfoLevel}},
		{name: "unknown level falls back to info", level: "loud", encoding: "json", enabled: zapcore.InfoLevel, disabled: []zapcore.Level{zapcore.DebugLevel}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.level, tt.encoding)
			require.NoError(t, err)

			assert.True(t, l.Core().Enabled(tt.enabled))
			for _, lvl := range tt.disabled {
				assert.False(t, l.Core().Enabled(lvl))
			}
		})
	}
}

func TestInit(t *testing.T) {
	prev := Logger
	defer func() { Logger = prev }()

	require.NoError(t, Init("error"))
	assert.NotNil(t, Logger)
	assert.False(t, Logger.Core().Enabled(zapcore.WarnLevel))
}
