package logger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNoopBeforeInit(t *testing.T) {
	assert.NotPanics(t, func() {
		Info(context.Background(), "hello", "k", 1)
		ErrorWithErr(context.Background(), "boom", errors.New("x"))
	})
}

func TestFieldsAndLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	Use(zap.New(core))
	t.Cleanup(func() { Use(nil) })

	ctx := context.Background()
	Info(ctx, "scan started", "symbols", 3)
	Trade(ctx, "ETH-USDT", "BUY", 0.25, 2000, "SIM-1")
	Risk(ctx, "ETH-USDT", "BELOW_MIN_NOTIONAL")
	ErrorWithErr(ctx, "ledger write failed", errors.New("disk full"), "symbol", "ETH-USDT")

	entries := logs.All()
	require.Len(t, entries, 4)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, int64(3), entries[0].ContextMap()["symbols"])
	assert.Equal(t, "TRADE", entries[1].ContextMap()["type"])
	assert.Equal(t, 0.25, entries[1].ContextMap()["quantity"])
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[3].Level)
	assert.Equal(t, "disk full", entries[3].ContextMap()["error"])
}

func TestDebugRequiresDetailedLogging(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	Use(zap.New(core))
	t.Cleanup(func() { Use(nil); detailedLogging = false })

	Debug(context.Background(), "hidden")
	assert.Zero(t, logs.Len())

	detailedLogging = true
	Debug(context.Background(), "shown")
	assert.Equal(t, 1, logs.Len())
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLogLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLogLevel("WARN"))
	assert.Equal(t, zapcore.InfoLevel, parseLogLevel("verbose"))
}

func TestOperationTimer(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	Use(zap.New(core))
	detailedLogging = true
	t.Cleanup(func() { Use(nil); detailedLogging = false })
	assert.True(t, IsDebugEnabled())

	op := StartOperation(context.Background(), "ledger.update", "symbol", "ETH-USDT")
	require.NotNil(t, op.GetContext())
	op.End("saved", true)
	StartOperation(context.Background(), "ledger.update").EndWithError(errors.New("lock timeout"))

	entries := logs.All()
	require.Len(t, entries, 4)
	assert.Equal(t, "Operation started", entries[0].Message)
	assert.Equal(t, "Operation completed", entries[1].Message)
	assert.Equal(t, "ETH-USDT", entries[1].ContextMap()["symbol"])
	assert.Equal(t, true, entries[1].ContextMap()["saved"])
	assert.Contains(t, entries[1].ContextMap(), "duration_ms")
	assert.Equal(t, "Operation failed", entries[3].Message)
	assert.Equal(t, zapcore.ErrorLevel, entries[3].Level)
}

func TestAttrsSkipsUnsupportedValues(t *testing.T) {
	kv := attrs([]any{"symbol", "ETH-USDT", "qty", 0.5, "n", 3, 7, "bad", "ok", true, "dangling"})
	require.Len(t, kv, 4)
	assert.Equal(t, "symbol", string(kv[0].Key))
	assert.Equal(t, 0.5, kv[1].Value.AsFloat64())
	assert.Equal(t, int64(3), kv[2].Value.AsInt64())
	assert.True(t, kv[3].Value.AsBool())
}
