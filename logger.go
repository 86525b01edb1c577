package docvec

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with docvec-specific context.
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
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// LogAppend logs an append operation.
func (l *Logger) LogAppend(ctx context.Context, chunks int, baseID int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "append failed",
			"chunks", chunks,
			"base_id", baseID,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "append completed",
			"chunks", chunks,
			"base_id", baseID,
		)
	}
}

// LogBuild logs a full rebuild operation.
func (l *Logger) LogBuild(ctx context.Context, chunks int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "build failed",
			"chunks", chunks,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "build completed",
			"chunks", chunks,
		)
	}
}

// LogSearch logs a search operation.
func (l *Logger) LogSearch(ctx context.Context, k, resultsFound int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"k", k,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "search completed",
			"k", k,
			"results", resultsFound,
		)
	}
}

// LogTrain logs an index training pass.
func (l *Logger) LogTrain(ctx context.Context, sampleSize int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "training failed",
			"sample_size", sampleSize,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "training completed",
			"sample_size", sampleSize,
		)
	}
}

// LogMigrate logs a legacy migration.
func (l *Logger) LogMigrate(ctx context.Context, migrated, skipped int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "migration failed",
			"migrated", migrated,
			"error", err,
		)
	} else if skipped > 0 {
		l.WarnContext(ctx, "migration completed with skipped entries",
			"migrated", migrated,
			"skipped", skipped,
		)
	} else {
		l.InfoContext(ctx, "migration completed",
			"migrated", migrated,
		)
	}
}

// LogSnapshot logs a snapshot save.
func (l *Logger) LogSnapshot(ctx context.Context, filename string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot failed",
			"filename", filename,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot saved",
			"filename", filename,
		)
	}
}

// LogDrift warns that the store and the index disagree on how many vectors
// exist. Repair requires a rebuild.
func (l *Logger) LogDrift(ctx context.Context, expectedVectors, indexCount int64) {
	l.WarnContext(ctx, "store and index out of sync, rebuild recommended",
		"expected_vectors", expectedVectors,
		"index_count", indexCount,
	)
}
