package logging

import (
	"context"
	"io"
	"maps"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// DefaultLogger is a zerolog-backed implementation of Logger.
// On a terminal it writes human readable console lines to stderr,
// otherwise newline-delimited JSON.
type DefaultLogger struct {
	zl     zerolog.Logger
	level  Level
	fields Fields
}

// NewDefaultLogger creates a logger writing to stderr, colored when stderr is a TTY
func NewDefaultLogger() *DefaultLogger {
	var w io.Writer = os.Stderr
	if isTerminal(os.Stderr) {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	}
	return NewLogger(w)
}

// NewLogger creates a logger that writes JSON lines to w.
func NewLogger(w io.Writer) *DefaultLogger {
	return &DefaultLogger{
		zl:     zerolog.New(w).With().Timestamp().Logger(),
		level:  InfoLevel,
		fields: make(Fields),
	}
}

// isTerminal checks if f is attached to a character device
func isTerminal(f *os.File) bool {
	if fileInfo, _ := f.Stat(); fileInfo != nil {
		return (fileInfo.Mode() & os.ModeCharDevice) != 0
	}
	return false
}

func (d *DefaultLogger) event(level Level) *zerolog.Event {
	switch level {
	case DebugLevel:
		return d.zl.Debug()
	case InfoLevel:
		return d.zl.Info()
	case WarnLevel:
		return d.zl.Warn()
	case ErrorLevel:
		return d.zl.Error()
	default:
		// WithLevel keeps zerolog from exiting; Fatal handles that itself
		return d.zl.WithLevel(zerolog.FatalLevel)
	}
}

func (d *DefaultLogger) log(level Level, err error, msg string, fields ...Fields) {
	if level < d.level {
		return
	}

	allFields := make(map[string]any, len(d.fields))
	maps.Copy(allFields, d.fields)
	for _, f := range fields {
		maps.Copy(allFields, f)
	}

	e := d.event(level)
	if err != nil {
		e = e.Err(err)
	}
	if len(allFields) > 0 {
		e = e.Fields(allFields)
	}
	e.Msg(msg)
}

func (d *DefaultLogger) Debug(msg string, fields ...Fields) {
	d.log(DebugLevel, nil, msg, fields...)
}

func (d *DefaultLogger) Info(msg string, fields ...Fields) {
	d.log(InfoLevel, nil, msg, fields...)
}

func (d *DefaultLogger) Warn(msg string, fields ...Fields) {
	d.log(WarnLevel, nil, msg, fields...)
}

func (d *DefaultLogger) Error(err error, msg string, fields ...Fields) {
	d.log(ErrorLevel, err, msg, fields...)
}

func (d *DefaultLogger) Fatal(err error, msg string, fields ...Fields) {
	d.log(FatalLevel, err, msg, fields...)
	os.Exit(1)
}

func (d *DefaultLogger) WithFields(fields Fields) Logger {
	newFields := make(Fields, len(d.fields)+len(fields))
	maps.Copy(newFields, d.fields)
	maps.Copy(newFields, fields)

	return &DefaultLogger{
		zl:     d.zl,
		level:  d.level,
		fields: newFields,
	}
}

func (d *DefaultLogger) WithContext(ctx context.Context) Logger {
	if fields, ok := fieldsFromContext(ctx); ok {
		return d.WithFields(fields)
	}
	return d
}

func (d *DefaultLogger) SetLevel(level Level) {
	d.level = level
}

// NoOpLogger discards everything. Tests use it to keep output quiet.
type NoOpLogger struct{}

func (n *NoOpLogger) Debug(msg string, fields ...Fields)            {}
func (n *NoOpLogger) Info(msg string, fields ...Fields)             {}
func (n *NoOpLogger) Warn(msg string, fields ...Fields)             {}
func (n *NoOpLogger) Error(err error, msg string, fields ...Fields) {}
func (n *NoOpLogger) Fatal(err error, msg string, fields ...Fields) {}
func (n *NoOpLogger) WithFields(fields Fields) Logger               { return n }
func (n *NoOpLogger) WithContext(ctx context.Context) Logger        { return n }
func (n *NoOpLogger) SetLevel(level Level)                          {}
