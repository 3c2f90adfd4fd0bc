// Package logging provides the zerolog-based logger shared by every
// component. Initialize once at startup with Init; before that the package
// falls back to sane defaults so early code paths can still log.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logging configuration.
type Config struct {
	// Level is the minimum level: trace, debug, info, warn, error.
	Level string `koanf:"level"`
	// Format selects json or console output.
	Format string `koanf:"format"`
	// Output overrides the destination, defaulting to stderr.
	Output io.Writer `koanf:"-"`
}

var (
	mu  sync.RWMutex
	log zerolog.Logger
)

func init() {
	log = build(Config{Level: "info", Format: "console"})
}

// Init configures the global logger.
func Init(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	log = build(cfg)
}

func build(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// L returns the global logger for callers that need sub-loggers.
func L() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// Trace starts a trace-level event.
func Trace() *zerolog.Event { l := L(); return l.Trace() }

// Debug starts a debug-level event.
func Debug() *zerolog.Event { l := L(); return l.Debug() }

// Info starts an info-level event.
func Info() *zerolog.Event { l := L(); return l.Info() }

// Warn starts a warn-level event.
func Warn() *zerolog.Event { l := L(); return l.Warn() }

// Error starts an error-level event.
func Error() *zerolog.Event { l := L(); return l.Error() }

// Fatal starts a fatal-level event; the program exits when it is sent.
func Fatal() *zerolog.Event { l := L(); return l.Fatal() }
