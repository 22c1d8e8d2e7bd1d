package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds the application logger. Development gets a colored console
// writer, every other environment gets JSON on stdout.
func New(env, level string) zerolog.Logger {
	var out io.Writer = os.Stdout
	if env == "" || env == "development" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return NewWithWriter(out, env, level)
}

func NewWithWriter(out io.Writer, env, level string) zerolog.Logger {
	return zerolog.New(out).
		Level(parseLevel(env, level)).
		With().
		Timestamp().
		Logger()
}

func parseLevel(env, level string) zerolog.Level {
	if level != "" {
		if lvl, err := zerolog.ParseLevel(strings.ToLower(level)); err == nil {
			return lvl
		}
	}
	if env == "" || env == "development" {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}
