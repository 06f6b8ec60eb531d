package beaconlogrus

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	beacon "github.com/beacon-sdk/beacon-go"
)

func newTestLogger(hook logrus.Hook) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})
	logger.AddHook(hook)
	return logger
}

func TestHookReportsErrors(t *testing.T) {
	diag := &beacon.Diagnostics{}
	logger := newTestLogger(NewHook(diag, nil))

	logger.Info("not reported")
	assert.False(t, diag.Pending())

	logger.WithField(FieldCode, 512).WithError(errors.New("quota")).Error("event dropped")

	state, ok := diag.TakeError()
	require.True(t, ok)
	assert.Equal(t, beacon.ErrorState{Code: 512, Description: "event dropped: quota"}, state)
}

func TestHookEntryToError(t *testing.T) {
	tests := []struct {
		name      string
		entry     *logrus.Entry
		wantCode  int
		wantDescr string
	}{
		{
			name:      "message only",
			entry:     &logrus.Entry{Message: "m", Data: logrus.Fields{}},
			wantCode:  DefaultCode,
			wantDescr: "m",
		},
		{
			name:      "error only",
			entry:     &logrus.Entry{Data: logrus.Fields{logrus.ErrorKey: errors.New("e")}},
			wantCode:  DefaultCode,
			wantDescr: "e",
		},
		{
			name:      "string code",
			entry:     &logrus.Entry{Message: "m", Data: logrus.Fields{FieldCode: "509"}},
			wantCode:  509,
			wantDescr: "m",
		},
		{
			name:      "invalid code",
			entry:     &logrus.Entry{Message: "m", Data: logrus.Fields{FieldCode: "x"}},
			wantCode:  DefaultCode,
			wantDescr: "m",
		},
	}
	hook := NewHook(&beacon.Diagnostics{}, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, description := hook.entryToError(tt.entry)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantDescr, description)
		})
	}
}

func TestHookSetKey(t *testing.T) {
	diag := &beacon.Diagnostics{}
	hook := NewHook(diag, []logrus.Level{logrus.WarnLevel})
	hook.SetKey(FieldCode, "status")
	logger := newTestLogger(hook)

	logger.WithField("status", 401).Warn("unauthorized")

	state, ok := diag.TakeError()
	require.True(t, ok)
	assert.Equal(t, 401, state.Code)
}

func TestHookFallback(t *testing.T) {
	hook := NewHook(nil, nil)
	entry := &logrus.Entry{Message: "m"}
	assert.Error(t, hook.Fire(entry))

	var got *logrus.Entry
	hook.SetFallback(func(e *logrus.Entry) error {
		got = e
		return nil
	})
	assert.NoError(t, hook.Fire(entry))
	assert.Same(t, entry, got)
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestNewDebugLogger(t *testing.T) {
	out := &lockedBuffer{}
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(logrus.DebugLevel)

	debugLogger, closeWriter := NewDebugLogger(logger)
	debugLogger.Println("replay incomplete")
	require.NoError(t, closeWriter())

	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "replay incomplete")
	}, time.Second, 10*time.Millisecond)
}
