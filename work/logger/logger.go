package logger

import (
	"fmt"
	"log"
	"strings"
	"sync"
)

// Level represents the severity of a log message.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	defaultLogger *Logger
	once          sync.Once
)

// Logger is a leveled logger writing through the standard log package.
type Logger struct {
	level Level
	mu    sync.RWMutex
}

// New creates a Logger with the given level name ("debug", "info", ...).
// Unknown names fall back to info.
func New(level string) *Logger {
	return &Logger{level: ParseLevel(level)}
}

func getDefault() *Logger {
	once.Do(func() {
		defaultLogger = &Logger{level: LevelInfo}
	})
	return defaultLogger
}

// ParseLevel converts a level name to a Level. Case-insensitive.
func ParseLevel(level string) Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return LevelDebug
	case "INFO":
		return LevelInfo
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

// SetLevel adjusts the package-level logger's threshold.
func SetLevel(level string) {
	getDefault().SetLevel(level)
}

// SetLevel adjusts this logger's threshold.
func (l *Logger) SetLevel(level string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = ParseLevel(level)
}

func (l *Logger) enabled(level Level) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return level >= l.level
}

func emit(tag string, format string, v ...interface{}) {
	log.Printf("[%s] %s", tag, fmt.Sprintf(format, v...))
}

// Debug logs a debug-level message.
func (l *Logger) Debug(format string, v ...interface{}) {
	if l.enabled(LevelDebug) {
		emit("DEBUG", format, v...)
	}
}

// Info logs an info-level message.
func (l *Logger) Info(format string, v ...interface{}) {
	if l.enabled(LevelInfo) {
		emit("INFO", format, v...)
	}
}

// Warn logs a warning-level message.
func (l *Logger) Warn(format string, v ...interface{}) {
	if l.enabled(LevelWarn) {
		emit("WARN", format, v...)
	}
}

// Error logs an error-level message.
func (l *Logger) Error(format string, v ...interface{}) {
	if l.enabled(LevelError) {
		emit("ERROR", format, v...)
	}
}

// Package-level shortcuts mirroring the instance methods.

func Debug(format string, v ...interface{}) { getDefault().Debug(format, v...) }
func Info(format string, v ...interface{})  { getDefault().Info(format, v...) }
func Warn(format string, v ...interface{})  { getDefault().Warn(format, v...) }
func Error(format string, v ...interface{}) { getDefault().Error(format, v...) }
