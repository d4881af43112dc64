package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, Level("debug"))
	assert.Equal(t, zapcore.WarnLevel, Level("warn"))
	assert.Equal(t, zapcore.ErrorLevel, Level("error"))
	assert.Equal(t, zapcore.InfoLevel, Level("info"))
	assert.Equal(t, zapcore.InfoLevel, Level("verbose"))
}

func TestNew_ReplacesGlobals(t *testing.T) {
	l := New("warn")
	defer zap.ReplaceGlobals(zap.NewNop())

	assert.Same(t, l, zap.L())
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))
}
