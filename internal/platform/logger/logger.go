// Package logger provides levelled logging for the session server.
// Every component receives a *Logger so session transitions, store failures
// and transport drops can be traced from a single stream.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
)

// Logger provides levelled logging with a fixed prefix per level.
type Logger struct {
	infoLogger  *log.Logger
	warnLogger  *log.Logger
	errorLogger *log.Logger
}

// NewLogger creates a logger writing INFO/WARN to stdout and ERROR to stderr.
func NewLogger() *Logger {
	return New(os.Stdout, os.Stderr)
}

// New creates a logger with explicit sinks. Tests pass io.Discard or a buffer.
func New(out, errOut io.Writer) *Logger {
	flags := log.Ldate | log.Ltime | log.Lmicroseconds
	return &Logger{
		infoLogger:  log.New(out, "[COINRUSH-INFO] ", flags),
		warnLogger:  log.New(out, "[COINRUSH-WARN] ", flags),
		errorLogger: log.New(errOut, "[COINRUSH-ERROR] ", flags),
	}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return New(io.Discard, io.Discard)
}

// Info logs informational messages.
func (l *Logger) Info(msg string) {
	l.infoLogger.Println(msg)
}

// Infof logs a formatted informational message.
func (l *Logger) Infof(format string, args ...any) {
	l.infoLogger.Println(fmt.Sprintf(format, args...))
}

// Warn logs warning messages.
func (l *Logger) Warn(msg string) {
	l.warnLogger.Println(msg)
}

// Warnf logs a formatted warning.
func (l *Logger) Warnf(format string, args ...any) {
	l.warnLogger.Println(fmt.Sprintf(format, args...))
}

// Error logs error messages.
func (l *Logger) Error(msg string) {
	l.errorLogger.Println(msg)
}

// Errorf logs a formatted error.
func (l *Logger) Errorf(format string, args ...any) {
	l.errorLogger.Println(fmt.Sprintf(format, args...))
}

// Event logs a gameplay event attributed to a connection or identity.
func (l *Logger) Event(eventType string, actorID string, details string) {
	l.infoLogger.Printf("[EVENT:%s] Actor:%s | %s", eventType, actorID, details)
}
