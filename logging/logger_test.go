package logging_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/stevemurr/flash-survey/logging"
)

func TestRequestIDAttached(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := logging.New(zap.New(core))

	ctx := logging.ContextWithRequestID(context.Background(), "req-1")
	logger.Info(ctx, "saved")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "saved", entry.Message)
	assert.Equal(t, "req-1", entry.ContextMap()["request_id"])
}

func TestFromContextFallsBackToNop(t *testing.T) {
	logger := logging.FromContext(context.Background())
	require.NotNil(t, logger)
	logger.Info(context.Background(), "dropped")
}

func TestFromContextReturnsStored(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := logging.New(zap.New(core))
	ctx := logging.ContextWithLogger(context.Background(), logger)

	logging.FromContext(ctx).Debug(ctx, "hello")
	assert.Equal(t, 1, logs.Len())
}

func TestNewFromLevel(t *testing.T) {
	_, err := logging.NewFromLevel("info")
	require.NoError(t, err)
	_, err = logging.NewFromLevel("debug")
	require.NoError(t, err)
	_, err = logging.NewFromLevel("loud")
	require.Error(t, err)
}
