package affinity

import (
	"context"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/hupe1980/affinity/tag"
)

// Logger wraps slog.Logger with affinity-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithTable adds the table name and identity to the logger.
func (l *Logger) WithTable(name string, id uuid.UUID) *Logger {
	return &Logger{
		Logger: l.Logger.With("table", name, "table_id", id.String()),
	}
}

// WithSchema adds a schema field to the logger.
func (l *Logger) WithSchema(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("schema", name),
	}
}

// WithTag adds a tag field to the logger.
func (l *Logger) WithTag(t tag.Tag) *Logger {
	return &Logger{
		Logger: l.Logger.With("tag", string(t)),
	}
}

// LogLoad logs a load operation.
func (l *Logger) LogLoad(ctx context.Context, version uint32, err error) {
	if err != nil {
		l.ErrorContext(ctx, "table load failed",
			"version", version,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "table loaded",
			"version", version,
		)
	}
}

// LogSave logs a save operation.
func (l *Logger) LogSave(ctx context.Context, bytes int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "table save failed",
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "table saved",
			"bytes", bytes,
		)
	}
}
