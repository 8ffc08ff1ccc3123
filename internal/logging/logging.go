// Package logging wraps the teacher's own logging idiom: a small facade
// (there, github.com/datatrails/go-datatrails-common/logger, backed by
// go.uber.org/zap) obtained once with New(level) and handed to components
// as a Logger field, rather than reached for as a package global from deep
// call sites. Components hold a Log Logger field, exactly the way
// massifs.MassifCommitter holds Log logger.Logger.
package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured logging interface every scribe component takes
// as a constructor argument.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Errorf(format string, args ...any)
	Sync() error
}

type zapLogger struct {
	z *zap.SugaredLogger
}

// singletonMu guards current, the most recently built Logger. The teacher
// obtains its logger with a bare logger.New(level) call and reaches it
// again through the package global; this package instead hands the built
// Logger back to the caller directly (so component constructors take an
// explicit Logger field, never a global), but still tracks the latest one
// so OnExit has something to flush without every call site threading it
// through.
var (
	singletonMu sync.Mutex
	current     Logger = noop{}
)

// New builds a Logger at the given level, recognized levels: "debug",
// "info", "error", "NOOP" (discards everything, used by tests the way the
// teacher's tests call logger.New("NOOP")). It also becomes the package
// singleton OnExit flushes.
func New(level string) Logger {
	l := build(level)
	singletonMu.Lock()
	current = l
	singletonMu.Unlock()
	return l
}

func build(level string) Logger {
	if level == "NOOP" || level == "" {
		return noop{}
	}

	var lvl zapcore.Level
	switch level {
	case "debug":
		lvl = zapcore.DebugLevel
	case "error":
		lvl = zapcore.ErrorLevel
	default:
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "console"
	z, err := cfg.Build()
	if err != nil {
		return noop{}
	}
	return &zapLogger{z: z.Sugar()}
}

// OnExit flushes the most recently built Logger's buffered output, the way
// the teacher's logger.OnExit releases its own package-level logger at
// process shutdown.
func OnExit() {
	singletonMu.Lock()
	l := current
	singletonMu.Unlock()
	_ = l.Sync()
}

func (l *zapLogger) Debugf(format string, args ...any) { l.z.Debugf(format, args...) }
func (l *zapLogger) Infof(format string, args ...any)  { l.z.Infof(format, args...) }
func (l *zapLogger) Errorf(format string, args ...any) { l.z.Errorf(format, args...) }
func (l *zapLogger) Sync() error                       { return l.z.Sync() }

// noop discards everything; used as the default and by tests.
type noop struct{}

func (noop) Debugf(string, ...any) {}
func (noop) Infof(string, ...any)  {}
func (noop) Errorf(string, ...any) {}
func (noop) Sync() error           { return nil }
