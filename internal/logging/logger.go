// Package logging provides config-driven categorized file-based logging for gemsmith.
// Logs are written to .gemsmith/logs/ with separate files per category.
// Logging is controlled by debug_mode in the workspace config - when false, no logs are written.
package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Category represents a log category/subsystem.
type Category string

const (
	CategoryBoot      Category = "boot"      // Startup/initialization
	CategoryPlan      Category = "plan"      // Plan parsing and schema validation
	CategoryOptimizer Category = "optimizer" // Quality-preset plan expansion
	CategorySequencer Category = "sequencer" // Execution sequencer walk
	CategoryDispatch  Category = "dispatch"  // Paradigm dispatch decisions
	CategorySynthesis Category = "synthesis" // Technique synthesis (LLM)
	CategorySandbox   Category = "sandbox"   // Safety checks on synthesized code
	CategoryBackend   Category = "backend"   // Geometry backend adapters
	CategoryStore     Category = "store"     // SQLite persistence
	CategoryAPI       Category = "api"       // LLM API calls
)

// Log levels.
const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

// Logger wraps a standard logger with category and file output.
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex

	logsDir   string
	enabled   bool
	logLevel  int
	configMu  sync.RWMutex
)

// Initialize sets up the logging directory. Should be called once at startup
// with the workspace path. When debug is false logging becomes a no-op.
func Initialize(workspace string, debug bool, level string) error {
	if workspace == "" {
		return fmt.Errorf("workspace path required")
	}

	configMu.Lock()
	defer configMu.Unlock()

	enabled = debug
	logLevel = parseLevel(level)
	if !enabled {
		return nil
	}

	logsDir = filepath.Join(workspace, ".gemsmith", "logs")
	return os.MkdirAll(logsDir, 0755)
}

func parseLevel(level string) int {
	switch level {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Get returns the logger for a category, creating it on first use.
func Get(category Category) *Logger {
	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	l := &Logger{category: category}

	configMu.RLock()
	dir := logsDir
	active := enabled
	configMu.RUnlock()

	if active && dir != "" {
		path := filepath.Join(dir, fmt.Sprintf("%s.log", category))
		if f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644); err == nil {
			l.file = f
			l.logger = log.New(f, "", log.LstdFlags|log.Lmicroseconds)
		}
	}

	loggers[category] = l
	return l
}

// Close flushes and closes all category log files.
func Close() {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	for _, l := range loggers {
		if l.file != nil {
			_ = l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
}

func (l *Logger) write(level int, levelName, format string, args ...interface{}) {
	configMu.RLock()
	active := enabled
	minLevel := logLevel
	configMu.RUnlock()

	if !active || l.logger == nil || level < minLevel {
		return
	}
	l.logger.Printf("[%s] %s", levelName, fmt.Sprintf(format, args...))
}

// Debug logs at debug level.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.write(LevelDebug, "DEBUG", format, args...)
}

// Info logs at info level.
func (l *Logger) Info(format string, args ...interface{}) {
	l.write(LevelInfo, "INFO", format, args...)
}

// Warn logs at warn level.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.write(LevelWarn, "WARN", format, args...)
}

// Error logs at error level.
func (l *Logger) Error(format string, args ...interface{}) {
	l.write(LevelError, "ERROR", format, args...)
}

// Convenience helpers for the busiest categories, mirroring call sites
// throughout the interpreter.

// Sequencer logs an info message to the sequencer category.
func Sequencer(format string, args ...interface{}) {
	Get(CategorySequencer).Info(format, args...)
}

// SequencerDebug logs a debug message to the sequencer category.
func SequencerDebug(format string, args ...interface{}) {
	Get(CategorySequencer).Debug(format, args...)
}

// Synthesis logs an info message to the synthesis category.
func Synthesis(format string, args ...interface{}) {
	Get(CategorySynthesis).Info(format, args...)
}

// SynthesisDebug logs a debug message to the synthesis category.
func SynthesisDebug(format string, args ...interface{}) {
	Get(CategorySynthesis).Debug(format, args...)
}

// Dispatch logs an info message to the dispatch category.
func Dispatch(format string, args ...interface{}) {
	Get(CategoryDispatch).Info(format, args...)
}

// Store logs an info message to the store category.
func Store(format string, args ...interface{}) {
	Get(CategoryStore).Info(format, args...)
}

// StoreDebug logs a debug message to the store category.
func StoreDebug(format string, args ...interface{}) {
	Get(CategoryStore).Debug(format, args...)
}

// Timer tracks the duration of an operation for performance logging.
type Timer struct {
	category Category
	name     string
	start    time.Time
}

// StartTimer begins timing an operation.
func StartTimer(category Category, name string) *Timer {
	return &Timer{category: category, name: name, start: time.Now()}
}

// Stop logs the elapsed time for the operation.
func (t *Timer) Stop() {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.name, elapsed)
	if elapsed > 5*time.Second {
		Get(t.category).Warn("%s took %v (slow)", t.name, elapsed)
	}
}
