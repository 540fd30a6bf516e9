package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func withObservedGlobal(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	previous := GetGlobalLogger()
	core, logs := observer.New(zapcore.DebugLevel)
	SetGlobalLogger(NewSystemLogger(zap.New(core)))
	t.Cleanup(func() { SetGlobalLogger(previous) })
	return logs
}

func TestInitGlobalLogger(t *testing.T) {
	previous := GetGlobalLogger()
	t.Cleanup(func() { SetGlobalLogger(previous) })

	require.NoError(t, InitGlobalLogger("production"))
	assert.NotSame(t, previous, GetGlobalLogger())
}

func TestGetGlobalLogger_Fallback(t *testing.T) {
	previous := GetGlobalLogger()
	t.Cleanup(func() { SetGlobalLogger(previous) })

	SetGlobalLogger(nil)
	assert.NotNil(t, GetGlobalLogger())
}

func TestGlobalLoggerConvenienceFunctions(t *testing.T) {
	logs := withObservedGlobal(t)

	Debug("debug")
	Info("info", LogContext{Provider: "paybox"})
	Warn("warn")
	Error("error", errors.New("boom"))

	require.Equal(t, 4, logs.Len())
	assert.Equal(t, "paybox", logs.All()[1].ContextMap()["provider"])
	assert.Equal(t, "boom", logs.All()[3].ContextMap()["error"])
}

func TestWithProvider(t *testing.T) {
	logs := withObservedGlobal(t)

	WithProvider("paybox").AddField("operation_id", "op-1").Info("signed request")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "paybox", fields["provider"])
	assert.Equal(t, "op-1", fields["operation_id"])
}
