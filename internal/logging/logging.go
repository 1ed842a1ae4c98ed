package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Logger is the observability collaborator handed to the dispatcher and to
// every tool handler. Implementations must be safe for concurrent use.
type Logger interface {
	Debug(msg string, keyvals ...interface{})
	Info(msg string, keyvals ...interface{})
	Warn(msg string, keyvals ...interface{})
	Error(msg string, keyvals ...interface{})
	With(keyvals ...interface{}) Logger
	LogPerformance(operation string, start time.Time)
}

// LevelEnv overrides the log level ("debug", "info", "warn", "error").
const LevelEnv = "TOOLGATE_LOG_LEVEL"

const logFileName = "toolgate.log"

type AppLogger struct {
	logger *log.Logger
	debug  bool
}

var _ Logger = (*AppLogger)(nil)

// NewAppLogger builds the process logger from the environment.
//
// With DEBUG set, logs go to toolgate.log in the working directory at debug
// level, truncated on each run. Otherwise warnings and errors go to stderr.
// TOOLGATE_LOG_LEVEL overrides the level in both cases.
func NewAppLogger() *AppLogger {
	debug := os.Getenv("DEBUG") != ""

	var logger *log.Logger

	if debug {
		// Development: Log to file, clear on each run
		logFile, logPath, err := openDebugLog()
		if err != nil {
			logger = New(os.Stderr, log.DebugLevel).logger
			logger.Warn("Debug log file unavailable, using stderr", "error", err)
		} else {
			logger = log.NewWithOptions(logFile, log.Options{
				ReportCaller:    true,
				ReportTimestamp: true,
				TimeFormat:      time.Kitchen,
				Prefix:          "toolgate",
			})
			logger.SetLevel(log.DebugLevel)
			logger.Info("Debug logging enabled", "log_file", logPath)
		}
	} else {
		// Production: stderr only, stdout may carry protocol traffic
		logger = New(os.Stderr, log.WarnLevel).logger
	}

	if lvl, ok := levelFromEnv(); ok {
		logger.SetLevel(lvl)
		debug = lvl <= log.DebugLevel
	}

	return &AppLogger{
		logger: logger,
		debug:  debug,
	}
}

// New creates a logger writing to w at the given level.
func New(w io.Writer, level log.Level) *AppLogger {
	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Prefix:          "toolgate",
	})
	logger.SetLevel(level)

	return &AppLogger{
		logger: logger,
		debug:  level <= log.DebugLevel,
	}
}

// Nop returns a logger that discards everything.
func Nop() *AppLogger {
	return New(io.Discard, log.FatalLevel)
}

func openDebugLog() (*os.File, string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get current working directory: %w", err)
	}

	logPath := filepath.Join(cwd, logFileName)
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create debug log file: %w", err)
	}
	return logFile, logPath, nil
}

func levelFromEnv() (log.Level, bool) {
	raw := strings.TrimSpace(os.Getenv(LevelEnv))
	if raw == "" {
		return 0, false
	}
	lvl, err := log.ParseLevel(strings.ToLower(raw))
	if err != nil {
		return 0, false
	}
	return lvl, true
}

// Log application events
func (al *AppLogger) Info(msg string, keyvals ...interface{}) {
	al.logger.Info(msg, keyvals...)
}

func (al *AppLogger) Warn(msg string, keyvals ...interface{}) {
	al.logger.Warn(msg, keyvals...)
}

func (al *AppLogger) Error(msg string, keyvals ...interface{}) {
	al.logger.Error(msg, keyvals...)
}

func (al *AppLogger) Debug(msg string, keyvals ...interface{}) {
	if al.debug {
		al.logger.Debug(msg, keyvals...)
	}
}

// With returns a child logger that adds keyvals to every entry.
func (al *AppLogger) With(keyvals ...interface{}) Logger {
	return &AppLogger{
		logger: al.logger.With(keyvals...),
		debug:  al.debug,
	}
}

// Log performance metrics
func (al *AppLogger) LogPerformance(operation string, start time.Time) {
	if al.debug {
		duration := time.Since(start)
		al.logger.Debug("Performance",
			"operation", operation,
			"duration", duration,
		)
	}
}

// TestBuffer is a concurrency-safe log sink for tests.
type TestBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *TestBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *TestBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Testing Helper - NewTestLogger creates a logger that writes to a buffer for testing.
// Child loggers from With share the buffer, so it is guarded.
func NewTestLogger() (*AppLogger, *TestBuffer) {
	buf := &TestBuffer{}

	logger := log.NewWithOptions(buf, log.Options{
		ReportTimestamp: false, // Easier to test without timestamps
		ReportCaller:    false,
		Prefix:          "Test",
	})
	logger.SetLevel(log.DebugLevel)

	return &AppLogger{
		logger: logger,
		debug:  true,
	}, buf
}
