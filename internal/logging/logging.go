package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type ctxKey struct{}

// New builds the process logger. format "json" writes one JSON object per
// line; anything else uses the human-readable console writer.
func New(level, format string) zerolog.Logger {
	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		out = os.Stdout
	}
	return NewWithWriter(out, level)
}

func NewWithWriter(w io.Writer, level string) zerolog.Logger {
	return zerolog.New(w).Level(levelFromString(level)).With().Timestamp().Logger()
}

func WithContext(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

func FromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
		return logger
	}
	return zerolog.Nop()
}

func levelFromString(value string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "error":
		return zerolog.ErrorLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "debug":
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}
