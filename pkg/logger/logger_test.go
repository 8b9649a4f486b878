package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	log, err := New("debug", true, "webauth")
	require.NoError(t, err)
	require.True(t, log.Core().Enabled(zapcore.DebugLevel))

	log, err = New("warn", false, "webauth")
	require.NoError(t, err)
	require.False(t, log.Core().Enabled(zapcore.InfoLevel))
	require.True(t, log.Core().Enabled(zapcore.WarnLevel))
}

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	log, err := New("loud", false, "webauth")
	require.NoError(t, err)
	require.True(t, log.Core().Enabled(zapcore.InfoLevel))
	require.False(t, log.Core().Enabled(zapcore.DebugLevel))
}
