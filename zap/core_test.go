package beaconzap

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	beacon "github.com/beacon-sdk/beacon-go"
)

func TestCoreReportsErrors(t *testing.T) {
	diag := &beacon.Diagnostics{}
	logger := zap.New(NewCore(Configuration{}, diag))

	logger.Warn("not reported")
	assert.False(t, diag.Pending())

	logger.Error("event dropped", zap.Int("code", 512), zap.Error(errors.New("quota")))

	state, ok := diag.TakeError()
	require.True(t, ok)
	assert.Equal(t, beacon.ErrorState{Code: 512, Description: "event dropped: quota"}, state)
}

func TestCoreWithFields(t *testing.T) {
	diag := &beacon.Diagnostics{}
	logger := zap.New(NewCore(Configuration{Level: zapcore.WarnLevel, CodeKey: "status"}, diag)).
		With(zap.Int("status", 401), zap.Error(errors.New("token expired")))

	logger.Warn("")

	state, ok := diag.TakeError()
	require.True(t, ok)
	assert.Equal(t, beacon.ErrorState{Code: 401, Description: "token expired"}, state)
}

func TestCoreDefaultCode(t *testing.T) {
	diag := &beacon.Diagnostics{}
	zap.New(NewCore(Configuration{}, diag)).Error("boom", zap.String("code", "x"))

	state, ok := diag.TakeError()
	require.True(t, ok)
	assert.Equal(t, DefaultCode, state.Code)
	assert.Equal(t, "boom", state.Description)
}

func TestNewCoreNilReporter(t *testing.T) {
	core := NewCore(Configuration{}, nil)
	assert.False(t, core.Enabled(zapcore.FatalLevel))
}

func TestAttachCoreToLogger(t *testing.T) {
	diag := &beacon.Diagnostics{}
	observed, logs := observer.New(zapcore.DebugLevel)
	logger := AttachCoreToLogger(NewCore(Configuration{}, diag), zap.New(observed))

	logger.Error("both")

	assert.Equal(t, 1, logs.Len())
	assert.True(t, diag.Pending())
}

func TestNewDebugLogger(t *testing.T) {
	observed, logs := observer.New(zapcore.DebugLevel)

	NewDebugLogger(zap.New(observed)).Println("replay incomplete")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "replay incomplete", entries[0].Message)
}
