package beaconzap

import (
	"fmt"

	"go.uber.org/zap/zapcore"
)

type core struct {
	reporter Reporter
	cfg      *Configuration
	zapcore.LevelEnabler

	errs   []error
	fields map[string]any
}

func (c *core) With(fs []zapcore.Field) zapcore.Core {
	return c.with(fs)
}

func (c *core) with(fs []zapcore.Field) *core {
	fields := make(map[string]interface{}, len(c.fields)+len(fs))
	for k, v := range c.fields {
		fields[k] = v
	}

	errs := append([]error{}, c.errs...)

	enc := zapcore.NewMapObjectEncoder()
	for _, f := range fs {
		f.AddTo(enc)
		if f.Type == zapcore.ErrorType {
			if err, ok := f.Interface.(error); ok {
				errs = append(errs, err)
			}
		}
	}

	for k, v := range enc.Fields {
		fields[k] = v
	}

	return &core{
		reporter:     c.reporter,
		cfg:          c.cfg,
		LevelEnabler: c.LevelEnabler,
		errs:         errs,
		fields:       fields,
	}
}

func (c *core) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *core) Write(ent zapcore.Entry, fs []zapcore.Field) error {
	clone := c.with(fs)
	c.reporter.SetError(clone.code(), clone.description(ent.Message))
	return nil
}

func (c *core) Sync() error {
	return nil
}

func (c *core) code() int {
	switch v := c.fields[c.cfg.CodeKey].(type) {
	case int64:
		return int(v)
	case int32:
		return int(v)
	case int:
		return v
	case uint64:
		return int(v)
	default:
		return DefaultCode
	}
}

// description is the message followed by the most recent error field.
func (c *core) description(message string) string {
	if len(c.errs) == 0 {
		return message
	}
	err := c.errs[len(c.errs)-1]
	if message == "" {
		return err.Error()
	}
	return fmt.Sprintf("%s: %v", message, err)
}
