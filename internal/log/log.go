package log

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	charm "github.com/charmbracelet/log"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

var (
	logger     *charm.Logger
	loggerOnce sync.Once
	loggerMu   sync.RWMutex
)

// initLogger initializes the global logger to write to stderr with timestamps.
func initLogger() {
	loggerOnce.Do(func() {
		logger = newLogger(os.Stderr)
	})
}

func newLogger(w io.Writer) *charm.Logger {
	l := charm.NewWithOptions(w, charm.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339Nano,
		Prefix:          "starlingcal",
		Level:           charm.InfoLevel,
	})
	return l
}

// SetOutput redirects the global logger, mainly for tests.
func SetOutput(w io.Writer) {
	initLogger()
	loggerMu.Lock()
	defer loggerMu.Unlock()
	level := logger.GetLevel()
	logger = newLogger(w)
	logger.SetLevel(level)
}

func SetLevel(l Level) {
	initLogger()
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	logger.SetLevel(toCharm(l))
}

// ParseLevel maps a config string ("debug", "info", ...) to a Level.
// Unknown values map to LevelInfo.
func ParseLevel(s string) Level {
	switch Level(strings.ToUpper(strings.TrimSpace(s))) {
	case LevelDebug:
		return LevelDebug
	case LevelWarn, "WARNING":
		return LevelWarn
	case LevelError:
		return LevelError
	default:
		return LevelInfo
	}
}

func Debug(msg string, kv ...any) {
	current().Debug(msg, kv...)
}

func Info(msg string, kv ...any) {
	current().Info(msg, kv...)
}

func Warn(msg string, kv ...any) {
	current().Warn(msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	// Prepend error into key-value list.
	extended := append([]any{"err", err}, kv...)
	current().Error(msg, extended...)
}

func current() *charm.Logger {
	initLogger()
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

func toCharm(l Level) charm.Level {
	switch l {
	case LevelDebug:
		return charm.DebugLevel
	case LevelWarn:
		return charm.WarnLevel
	case LevelError:
		return charm.ErrorLevel
	default:
		return charm.InfoLevel
	}
}
