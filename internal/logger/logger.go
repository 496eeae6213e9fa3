// Package logger holds the process-wide zerolog logger used by dockercloud.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogFileName is the name of the rotated log file inside the logs directory.
const LogFileName = "dockercloud.log"

var (
	// Log is the global logger instance. It is a nop logger until Init or
	// InitWithFile is called, so library code can log unconditionally.
	Log = zerolog.Nop()

	// fileWriter is the file output for logging (with rotation)
	fileWriter *lumberjack.Logger
	fileMu     sync.Mutex
)

// LoggingConfig holds configuration for file-based logging.
// It mirrors config.LoggingConfig but lives here to keep this package a leaf.
type LoggingConfig struct {
	FileEnabled *bool
	MaxSizeMB   int
	MaxAgeDays  int
	MaxBackups  int
}

// IsFileEnabled returns whether file logging is enabled.
// Defaults to true if not explicitly set.
func (c *LoggingConfig) IsFileEnabled() bool {
	if c.FileEnabled == nil {
		return true
	}
	return *c.FileEnabled
}

// GetMaxSizeMB returns the max size in MB, defaulting to 50 if not set.
func (c *LoggingConfig) GetMaxSizeMB() int {
	if c.MaxSizeMB <= 0 {
		return 50
	}
	return c.MaxSizeMB
}

// GetMaxAgeDays returns the max age in days, defaulting to 7 if not set.
func (c *LoggingConfig) GetMaxAgeDays() int {
	if c.MaxAgeDays <= 0 {
		return 7
	}
	return c.MaxAgeDays
}

// GetMaxBackups returns the max backups, defaulting to 3 if not set.
func (c *LoggingConfig) GetMaxBackups() int {
	if c.MaxBackups <= 0 {
		return 3
	}
	return c.MaxBackups
}

func levelFor(debug bool) zerolog.Level {
	if debug {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}

func consoleWriter() zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
}

// Init initializes console-only logging on stderr.
func Init(debug bool) {
	Log = zerolog.New(consoleWriter()).
		Level(levelFor(debug)).
		With().
		Timestamp().
		Logger()
}

// InitWithFile initializes the logger with optional file output.
// If logsDir is empty or cfg disables file logging, this behaves like Init.
// The console gets human-readable output, the file gets JSON lines.
func InitWithFile(debug bool, logsDir string, cfg *LoggingConfig) error {
	if logsDir == "" || cfg == nil || !cfg.IsFileEnabled() {
		Init(debug)
		return nil
	}

	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	fileMu.Lock()
	defer fileMu.Unlock()

	fileWriter = &lumberjack.Logger{
		Filename:   filepath.Join(logsDir, LogFileName),
		MaxSize:    cfg.GetMaxSizeMB(),
		MaxAge:     cfg.GetMaxAgeDays(),
		MaxBackups: cfg.GetMaxBackups(),
		LocalTime:  true,
	}

	Log = zerolog.New(io.MultiWriter(consoleWriter(), fileWriter)).
		Level(levelFor(debug)).
		With().
		Timestamp().
		Logger()
	return nil
}

// SetOutput points the global logger at w with JSON output at debug level.
// Tests use it to capture and assert on log lines.
func SetOutput(w io.Writer) {
	Log = zerolog.New(w).Level(zerolog.DebugLevel).With().Timestamp().Logger()
}

// CloseFileWriter closes the file writer if it exists.
// Call this on program shutdown for clean log file closure.
func CloseFileWriter() error {
	fileMu.Lock()
	defer fileMu.Unlock()
	if fileWriter != nil {
		err := fileWriter.Close()
		fileWriter = nil
		return err
	}
	return nil
}

// GetLogFilePath returns the path to the current log file, or empty string if file logging is disabled.
func GetLogFilePath() string {
	fileMu.Lock()
	defer fileMu.Unlock()
	if fileWriter != nil {
		return fileWriter.Filename
	}
	return ""
}

// Debug starts a debug-level event.
func Debug() *zerolog.Event {
	return Log.Debug()
}

// Info starts an info-level event.
func Info() *zerolog.Event {
	return Log.Info()
}

// Warn starts a warn-level event.
func Warn() *zerolog.Event {
	return Log.Warn()
}

// Error starts an error-level event.
func Error() *zerolog.Event {
	return Log.Error()
}

// ForTest returns a sub-logger tagged with a container test id.
func ForTest(testID string) zerolog.Logger {
	return Log.With().Str("test", testID).Logger()
}

// ShortID truncates a container ID to the 12 characters docker prints.
func ShortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
