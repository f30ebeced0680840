package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromContextCarriesRequestID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	l := &Logger{zap.New(core).Sugar()}

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithLogger(ctx, l.WithComponent("allocation"))
	Info(ctx, "deducted", "row_id", int64(7))
	Debug(ctx, "dropped below level")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "deducted", entry.Message)
	fields := entry.ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "allocation", fields["component"])
	assert.Equal(t, int64(7), fields["row_id"])
}

func TestNewFallsBackToInfoOnBadLevel(t *testing.T) {
	l, err := New(Config{Level: "loud", OutputPaths: []string{"stderr"}})
	require.NoError(t, err)
	assert.True(t, l.Desugar().Core().Enabled(zap.InfoLevel))
	assert.False(t, l.Desugar().Core().Enabled(zap.DebugLevel))
}
