// Package beaconzap connects zap to a beacon client.
//
// NewCore reports log entries as the diagnostic error attached to the next
// beacon, and NewDebugLogger routes the client's debug output into zap.
package beaconzap

import (
	"log"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	defaultCodeKey = "code"

	// DefaultCode is reported for entries without a code field.
	DefaultCode = 500
)

// Reporter receives the diagnostic error. *beacon.Diagnostics implements it.
type Reporter interface {
	SetError(code int, description string)
}

// Configuration is a minimal set of parameters for the beacon core.
type Configuration struct {
	// Level is the minimal level of reported entries. Defaults to error.
	Level zapcore.LevelEnabler

	// CodeKey is the field holding the numeric error code. Defaults to "code".
	CodeKey string
}

func setDefaultConfig(cfg *Configuration) {
	if cfg.Level == nil {
		cfg.Level = zapcore.ErrorLevel
	}
	if cfg.CodeKey == "" {
		cfg.CodeKey = defaultCodeKey
	}
}

// NewCore creates a zapcore.Core reporting entries to reporter.
func NewCore(cfg Configuration, reporter Reporter) zapcore.Core {
	if reporter == nil {
		return zapcore.NewNopCore()
	}
	setDefaultConfig(&cfg)
	return &core{
		reporter:     reporter,
		cfg:          &cfg,
		LevelEnabler: cfg.Level,
		fields:       make(map[string]any),
	}
}

// AttachCoreToLogger tees the beacon core into l.
func AttachCoreToLogger(beaconCore zapcore.Core, l *zap.Logger) *zap.Logger {
	return l.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, beaconCore)
	}))
}

// NewDebugLogger returns a *log.Logger writing to l at debug level, for use
// as beacon.ClientOptions.DebugLogger.
func NewDebugLogger(l *zap.Logger) *log.Logger {
	debugLogger, err := zap.NewStdLogAt(l.WithOptions(zap.AddCallerSkip(2)), zapcore.DebugLevel)
	if err != nil {
		// Only invalid levels fail.
		return zap.NewStdLog(l)
	}
	return debugLogger
}
