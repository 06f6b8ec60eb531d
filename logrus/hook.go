// Package beaconlogrus connects logrus to a beacon client.
//
// The Hook reports log entries as the diagnostic error attached to the next
// beacon, and NewDebugLogger routes the client's debug output into logrus.
package beaconlogrus

import (
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/sirupsen/logrus"
)

// FieldCode holds the numeric error code of an entry. It may be overridden
// by calling SetKey on the hook.
const FieldCode = "code"

// DefaultCode is reported for entries without a code field.
const DefaultCode = 500

// Reporter receives the diagnostic error. *beacon.Diagnostics implements it.
type Reporter interface {
	SetError(code int, description string)
}

// A FallbackFunc can be used to attempt to handle any errors in logging,
// before resorting to Logrus's standard error reporting.
type FallbackFunc func(*logrus.Entry) error

// Hook is the logrus hook for beacon diagnostics.
//
// It is not safe to configure the hook while logging is happening. Please
// perform all configuration before using it.
type Hook struct {
	reporter Reporter
	levels   []logrus.Level
	fallback FallbackFunc
	keys     map[string]string
}

var _ logrus.Hook = &Hook{}

// NewHook returns a hook reporting entries at levels to reporter. Nil levels
// mean error and above.
func NewHook(reporter Reporter, levels []logrus.Level) *Hook {
	if levels == nil {
		levels = []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel}
	}
	return &Hook{
		reporter: reporter,
		levels:   levels,
		keys:     make(map[string]string),
	}
}

// SetFallback sets a function called for entries the hook cannot report.
func (h *Hook) SetFallback(fb FallbackFunc) {
	h.fallback = fb
}

// SetKey sets an alternate field key for FieldCode.
func (h *Hook) SetKey(oldKey, newKey string) {
	if oldKey == "" {
		return
	}
	if newKey == "" {
		delete(h.keys, oldKey)
		return
	}
	delete(h.keys, newKey)
	h.keys[oldKey] = newKey
}

func (h *Hook) key(key string) string {
	if val := h.keys[key]; val != "" {
		return val
	}
	return key
}

func (h *Hook) Levels() []logrus.Level {
	return h.levels
}

func (h *Hook) Fire(entry *logrus.Entry) error {
	if h.reporter == nil {
		if h.fallback != nil {
			return h.fallback(entry)
		}
		return errors.New("no beacon diagnostics to report to")
	}
	code, description := h.entryToError(entry)
	h.reporter.SetError(code, description)
	return nil
}

func (h *Hook) entryToError(entry *logrus.Entry) (int, string) {
	code := DefaultCode
	switch v := entry.Data[h.key(FieldCode)].(type) {
	case int:
		code = v
	case int64:
		code = int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			code = n
		}
	}

	description := entry.Message
	if err, ok := entry.Data[logrus.ErrorKey].(error); ok {
		if description == "" {
			description = err.Error()
		} else {
			description = fmt.Sprintf("%s: %v", description, err)
		}
	}
	return code, description
}

// NewDebugLogger returns a *log.Logger writing to l at debug level, for use
// as beacon.ClientOptions.DebugLogger. Close the returned writer when done.
func NewDebugLogger(l *logrus.Logger) (*log.Logger, func() error) {
	w := l.WriterLevel(logrus.DebugLevel)
	return log.New(w, "", 0), w.Close
}
