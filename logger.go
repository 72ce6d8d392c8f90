package blocking

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with blocking-specific helpers.
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
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// WithField adds a field name to the logger.
func (l *Logger) WithField(field string) *Logger {
	return &Logger{
		Logger: l.Logger.With("field", field),
	}
}

// LogProgress logs emission progress.
func (l *Logger) LogProgress(ctx context.Context, records int, elapsed time.Duration) {
	l.InfoContext(ctx, "blocking progress",
		"records", records,
		"elapsed_seconds", elapsed.Seconds(),
	)
}

// LogIndexBuild logs the construction of one shared index.
func (l *Logger) LogIndexBuild(ctx context.Context, key IndexKey, docs, predicates int, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "index build failed",
			"field", key.Field,
			"index", string(key.Kind),
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "index built",
		"field", key.Field,
		"index", string(key.Kind),
		"documents", docs,
		"predicates", predicates,
		"elapsed_seconds", elapsed.Seconds(),
	)
}

// LogIndexReset logs the release of every shared index.
func (l *Logger) LogIndexReset(ctx context.Context, indices, predicates int) {
	l.DebugContext(ctx, "indices reset",
		"indices", indices,
		"predicates", predicates,
	)
}

// LogSizeStats logs a block size distribution under a title.
func (l *Logger) LogSizeStats(ctx context.Context, title string, stats SizeStats) {
	if stats.Empty() {
		l.InfoContext(ctx, title, "blocks", 0, "status", "no data")
		return
	}
	attrs := []any{
		"blocks", stats.Blocks,
		"mean_size", stats.Mean,
	}
	for _, p := range stats.Percentiles {
		attrs = append(attrs, slog.Float64(p.Label(), p.Value))
	}
	l.InfoContext(ctx, title, attrs...)
	for _, b := range stats.Largest {
		l.InfoContext(ctx, title+": large block",
			"key", b.Key,
			"size", b.Size,
		)
	}
}

// LogRecall logs an estimated blocking recall.
func (l *Logger) LogRecall(ctx context.Context, stats RecallStats) {
	recall, ok := stats.Recall()
	if !ok {
		l.WarnContext(ctx, "estimated blocking recall unavailable",
			"match_pairs", 0,
		)
		return
	}
	l.InfoContext(ctx, "estimated blocking recall",
		"recall", recall,
		"match_pairs", stats.Pairs,
		"recalled", stats.Recalled,
	)
}
