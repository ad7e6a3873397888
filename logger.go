package gpurender

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gpurender/backend/software"
	"github.com/gogpu/gpurender/hwpipeline"
	"github.com/gogpu/gpurender/shader"
)

// nopHandler is a slog.Handler that silently discards all log records.
// The Enabled method returns false so the caller skips message formatting
// entirely, making disabled logging effectively zero-cost.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

// loggerSinks are the SetLogger functions of the sub-packages. Backends
// compiled in behind build tags add theirs from init.
var (
	sinksMu     sync.Mutex
	loggerSinks = []func(*slog.Logger){
		shader.SetLogger,
		hwpipeline.SetLogger,
		software.SetLogger,
	}
)

func init() {
	loggerPtr.Store(newNopLogger())
}

// addLoggerSink registers a sub-package SetLogger and hands it the current
// logger.
func addLoggerSink(fn func(*slog.Logger)) {
	sinksMu.Lock()
	loggerSinks = append(loggerSinks, fn)
	sinksMu.Unlock()
	fn(Logger())
}

// SetLogger configures the logger for gpurender and all its sub-packages.
// By default nothing is logged. Pass nil to restore the silent default.
//
// Log levels used by gpurender:
//   - [slog.LevelDebug]: per-pass encoding detail, pipeline creation
//   - [slog.LevelInfo]: lifecycle events (device opened, cache loaded/saved)
//   - [slog.LevelWarn]: soft failures (corrupt cache file, ignored uploads,
//     frame timeouts)
//   - [slog.LevelError]: resource creation failures
//
// Example:
//
//	gpurender.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	sinksMu.Lock()
	sinks := append(([]func(*slog.Logger))(nil), loggerSinks...)
	sinksMu.Unlock()
	for _, set := range sinks {
		set(l)
	}
}

// Logger returns the current logger.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
