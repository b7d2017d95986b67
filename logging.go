package corvid

import (
	"sync"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger is the structured-logging seam corvid's serving loop logs
// through. It mirrors the minimal surface the serving core actually
// needs (two severities plus fields), so that any backend — the
// default stumpy-based one, or an application's own zerolog/logrus/
// slog adapter — can satisfy it. The default backend's packages are
// imported by this package regardless of which Logger is used.
//
// This is the same "small package-level seam, swappable backend"
// design as eventloop.Logger: infrastructure logging is a
// cross-cutting concern configured once, not threaded through every
// call.
type Logger interface {
	Info(msg string, fields ...Field)
	Error(msg string, err error, fields ...Field)
}

// Field is a single structured logging attribute.
type Field struct {
	Key   string
	Value any
}

// F constructs a Field inline at a log call site.
func F(key string, value any) Field { return Field{Key: key, Value: value} }

// noopLogger discards everything. It is the zero-configuration
// default so that embedding corvid never forces an application to wire
// up logging before it can Serve.
type noopLogger struct{}

func (noopLogger) Info(string, ...Field)        {}
func (noopLogger) Error(string, error, ...Field) {}

// NewNoOpLogger returns a Logger that discards all messages.
func NewNoOpLogger() Logger { return noopLogger{} }

// stumpyLogger adapts a github.com/joeycumines/logiface logger, backed
// by github.com/joeycumines/stumpy's JSON event writer, to corvid's
// Logger interface. This is corvid's default backend, constructed via
// stumpy.L.New(stumpy.L.WithStumpy(...)).
type stumpyLogger struct {
	log *logiface.Logger[*stumpy.Event]
}

// NewDefaultLogger returns corvid's default Logger, writing
// newline-delimited JSON through logiface+stumpy to os.Stderr.
func NewDefaultLogger() Logger {
	return &stumpyLogger{log: stumpy.L.New(stumpy.L.WithStumpy())}
}

func (l *stumpyLogger) Info(msg string, fields ...Field) {
	b := l.log.Info()
	if b == nil {
		return
	}
	applyFields(b, fields)
	b.Log(msg)
}

func (l *stumpyLogger) Error(msg string, err error, fields ...Field) {
	b := l.log.Err()
	if b == nil {
		return
	}
	if err != nil {
		b = b.Err(err)
	}
	applyFields(b, fields)
	b.Log(msg)
}

func applyFields(b *logiface.Builder[*stumpy.Event], fields []Field) {
	for _, f := range fields {
		switch v := f.Value.(type) {
		case string:
			b.Str(f.Key, v)
		case int:
			b.Int64(f.Key, int64(v))
		case int64:
			b.Int64(f.Key, v)
		case error:
			b.Str(f.Key, v.Error())
		default:
			b.Any(f.Key, v)
		}
	}
}

var (
	globalLoggerMu sync.RWMutex
	globalLogger   Logger = noopLogger{}
)

// SetDefaultLogger sets the package-level default Logger used by
// Servers constructed with WithLogger omitted. It follows the same
// "package-level cross-cutting config" pattern as
// eventloop.SetStructuredLogger.
func SetDefaultLogger(l Logger) {
	globalLoggerMu.Lock()
	defer globalLoggerMu.Unlock()
	if l == nil {
		l = noopLogger{}
	}
	globalLogger = l
}

func defaultLogger() Logger {
	globalLoggerMu.RLock()
	defer globalLoggerMu.RUnlock()
	return globalLogger
}
