// Package core holds cross-cutting primitives shared by the server packages.
package core

import (
	"fmt"
	"io"
	"log"
	"os"
)

// Logger provides leveled logging. The abstraction allows swapping the
// std-log-backed default for a structured implementation without touching the
// server packages.
type Logger interface {
	// Error logs an error message
	Error(args ...interface{})

	// Errorf logs a formatted error message
	Errorf(format string, args ...interface{})

	// Warn logs a warning message
	Warn(args ...interface{})

	// Warnf logs a formatted warning message
	Warnf(format string, args ...interface{})

	// Info logs an informational message
	Info(args ...interface{})

	// Infof logs a formatted informational message
	Infof(format string, args ...interface{})

	// Debug logs a debug message
	Debug(args ...interface{})

	// Debugf logs a formatted debug message
	Debugf(format string, args ...interface{})
}

// defaultLogger implements Logger using Go's standard log package.
type defaultLogger struct {
	errorLogger *log.Logger
	warnLogger  *log.Logger
	infoLogger  *log.Logger
	debugLogger *log.Logger
}

// NewDefaultLogger creates the default logger: [LEVEL]-prefixed lines, errors
// and warnings on stderr, the rest on stdout.
func NewDefaultLogger() Logger {
	return newLoggerTo(os.Stderr, os.Stdout)
}

// NewLoggerTo creates a logger writing every level to w. Intended for tests.
func NewLoggerTo(w io.Writer) Logger {
	return newLoggerTo(w, w)
}

func newLoggerTo(errW, outW io.Writer) Logger {
	return &defaultLogger{
		errorLogger: log.New(errW, "[ERROR] ", log.LstdFlags|log.Lshortfile),
		warnLogger:  log.New(errW, "[WARN] ", log.LstdFlags|log.Lshortfile),
		infoLogger:  log.New(outW, "[INFO] ", log.LstdFlags|log.Lshortfile),
		debugLogger: log.New(outW, "[DEBUG] ", log.LstdFlags|log.Lshortfile),
	}
}

func (l *defaultLogger) Error(args ...interface{}) {
	l.errorLogger.Output(3, fmt.Sprint(args...))
}

func (l *defaultLogger) Errorf(format string, args ...interface{}) {
	l.errorLogger.Output(3, fmt.Sprintf(format, args...))
}

func (l *defaultLogger) Warn(args ...interface{}) {
	l.warnLogger.Output(3, fmt.Sprint(args...))
}

func (l *defaultLogger) Warnf(format string, args ...interface{}) {
	l.warnLogger.Output(3, fmt.Sprintf(format, args...))
}

func (l *defaultLogger) Info(args ...interface{}) {
	l.infoLogger.Output(3, fmt.Sprint(args...))
}

func (l *defaultLogger) Infof(format string, args ...interface{}) {
	l.infoLogger.Output(3, fmt.Sprintf(format, args...))
}

func (l *defaultLogger) Debug(args ...interface{}) {
	l.debugLogger.Output(3, fmt.Sprint(args...))
}

func (l *defaultLogger) Debugf(format string, args ...interface{}) {
	l.debugLogger.Output(3, fmt.Sprintf(format, args...))
}
