// Package logging provides structured logging for the prism runtime on top
// of bolt: a process-wide logger plus typed field constructors for routing
// and caching events.
package logging

import (
	"os"
	"strings"
	"sync"

	"github.com/felixgeelhaar/bolt/v3"
)

// Config describes the process-wide logger.
type Config struct {
	// Level is the minimum level emitted (trace, debug, info, warn, error).
	Level string
	// Format selects the handler, "json" or "console".
	Format string
	// Output is the destination, os.Stdout when nil.
	Output *os.File
}

// DefaultConfig returns console output at info level.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "console",
		Output: os.Stdout,
	}
}

var (
	mu     sync.Mutex
	logger *bolt.Logger
)

// Init configures the process-wide logger. Later calls reconfigure it, so a
// loaded configuration overrides the startup default.
func Init(config Config) {
	mu.Lock()
	defer mu.Unlock()
	logger = build(config)
}

func build(config Config) *bolt.Logger {
	output := config.Output
	if output == nil {
		output = os.Stdout
	}

	var handler bolt.Handler
	if config.Format == "json" {
		handler = bolt.NewJSONHandler(output)
	} else {
		handler = bolt.NewConsoleHandler(output)
	}
	return bolt.New(handler).SetLevel(parseLevel(config.Level))
}

// parseLevel maps a level name onto its bolt.Level, defaulting to info.
func parseLevel(s string) bolt.Level {
	switch strings.ToLower(s) {
	case "trace":
		return bolt.TRACE
	case "debug":
		return bolt.DEBUG
	case "info":
		return bolt.INFO
	case "warn", "warning":
		return bolt.WARN
	case "error":
		return bolt.ERROR
	default:
		return bolt.INFO
	}
}

func active() *bolt.Logger {
	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		logger = build(DefaultConfig())
	}
	return logger
}

// LogEvent chains typed Fields onto one bolt event.
type LogEvent struct {
	event *bolt.Event
}

// Add applies a field and returns the event for chaining.
func (l *LogEvent) Add(f Field) *LogEvent {
	l.event = f(l.event)
	return l
}

// Msg emits the event with a message.
func (l *LogEvent) Msg(msg string) {
	l.event.Msg(msg)
}

// Debug starts a debug-level event.
func Debug() *LogEvent {
	return &LogEvent{event: active().Debug()}
}

// Info starts an info-level event.
func Info() *LogEvent {
	return &LogEvent{event: active().Info()}
}

// Warn starts a warn-level event.
func Warn() *LogEvent {
	return &LogEvent{event: active().Warn()}
}

// Error starts an error-level event.
func Error() *LogEvent {
	return &LogEvent{event: active().Error()}
}
