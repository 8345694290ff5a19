package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestNewDefaults(t *testing.T) {
	l, err := New(Config{})
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestInitReplacesGlobal(t *testing.T) {
	require.NoError(t, Init(Config{Level: "debug", Encoding: "console"}))
	assert.True(t, Get().Core().Enabled(zapcore.DebugLevel))

	require.NoError(t, Init(Config{Level: "warn"}))
	assert.False(t, Get().Core().Enabled(zapcore.InfoLevel))
}

func TestFromContext(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	ctx := ContextWithRunID(context.Background(), "1700000000")
	FromContext(ctx, base).Info("run")

	ctx = ContextWithChunk(ctx, 4)
	FromContext(ctx, base).Info("chunk")

	FromContext(context.Background(), base).Info("bare")

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, map[string]interface{}{"run_id": "1700000000"}, entries[0].ContextMap())
	assert.Equal(t, map[string]interface{}{"run_id": "1700000000", "chunk": int64(4)}, entries[1].ContextMap())
	assert.Empty(t, entries[2].ContextMap())
}

func TestFromContextFallsBackToGlobal(t *testing.T) {
	require.NoError(t, Init(Config{Level: "warn"}))
	l := FromContext(ContextWithChunk(context.Background(), 1), nil)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
}
