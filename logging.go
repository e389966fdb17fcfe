// logging.go - structured logging for the ocr runtime.
//
// Package-level configuration, matching the teacher eventloop package's
// logging.go design: a small Logger interface, a package-level default
// settable via SetLogger, and a no-op fallback so logging is never
// mandatory. The default implementation is backed by logiface+stumpy
// instead of a hand-rolled encoder.
package ocr

import (
	"sync"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger is the structured logging sink used throughout the runtime. Fields
// are passed as alternating key/value pairs, matching logiface's builder
// convention once flattened.
type Logger interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, err error, fields ...any)
	// Fatal logs at the highest severity. Callers are expected to abort the
	// policy domain immediately afterward; Fatal itself does not exit.
	Fatal(msg string, err error, fields ...any)
}

var globalLogger struct {
	sync.RWMutex
	logger Logger
}

// SetLogger installs the package-level default logger. Passing nil installs
// the no-op logger.
func SetLogger(l Logger) {
	globalLogger.Lock()
	defer globalLogger.Unlock()
	if l == nil {
		l = noopLogger{}
	}
	globalLogger.logger = l
}

func getLogger() Logger {
	globalLogger.RLock()
	defer globalLogger.RUnlock()
	if globalLogger.logger != nil {
		return globalLogger.logger
	}
	return noopLogger{}
}

func init() {
	SetLogger(NewStumpyLogger())
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any)          {}
func (noopLogger) Info(string, ...any)           {}
func (noopLogger) Warn(string, ...any)           {}
func (noopLogger) Error(string, error, ...any)   {}
func (noopLogger) Fatal(string, error, ...any)   {}

// stumpyLogger adapts a logiface.Logger[*stumpy.Event] to the Logger
// interface expected by the rest of the runtime.
type stumpyLogger struct {
	l *logiface.Logger[*stumpy.Event]
}

// NewStumpyLogger builds the default Logger, writing newline-delimited JSON
// to os.Stderr via stumpy (matching the pairing used elsewhere in the
// corpus, e.g. logiface-stumpy).
func NewStumpyLogger() Logger {
	return &stumpyLogger{l: stumpy.L.New(stumpy.L.WithStumpy())}
}

func withFields[E any](b *logiface.Builder[E], fields []any) *logiface.Builder[E] {
	for i := 0; i+1 < len(fields); i += 2 {
		key, _ := fields[i].(string)
		switch v := fields[i+1].(type) {
		case string:
			b = b.Str(key, v)
		case int:
			b = b.Int(key, v)
		case int64:
			b = b.Int64(key, v)
		case uint64:
			b = b.Int64(key, int64(v))
		case Guid:
			b = b.Str(key, v.String())
		case Status:
			b = b.Str(key, v.String())
		case error:
			b = b.Err(v)
		case bool:
			b = b.Bool(key, v)
		default:
			b = b.Any(key, v)
		}
	}
	return b
}

func (s *stumpyLogger) Debug(msg string, fields ...any) {
	withFields(s.l.Debug(), fields).Log(msg)
}

func (s *stumpyLogger) Info(msg string, fields ...any) {
	withFields(s.l.Info(), fields).Log(msg)
}

func (s *stumpyLogger) Warn(msg string, fields ...any) {
	withFields(s.l.Warning(), fields).Log(msg)
}

func (s *stumpyLogger) Error(msg string, err error, fields ...any) {
	b := s.l.Err()
	if err != nil {
		b = b.Err(err)
	}
	withFields(b, fields).Log(msg)
}

func (s *stumpyLogger) Fatal(msg string, err error, fields ...any) {
	b := s.l.Crit()
	if err != nil {
		b = b.Err(err)
	}
	withFields(b, fields).Log(msg)
}
