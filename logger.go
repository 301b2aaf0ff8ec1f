package xodus

import (
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with index-specific context helpers. A nil
// *Logger is valid and discards everything, so callers who don't care about
// observability pay nothing beyond the nil check.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger around handler. If handler is nil, a text
// handler writing to stderr at info level is used.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NoopLogger returns a Logger that discards all output.
func NoopLogger() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000),
	}))}
}

func (l *Logger) orNoop() *Logger {
	if l == nil {
		return NoopLogger()
	}
	return l
}

// WithName returns a Logger scoped to a named index.
func (l *Logger) WithName(name string) *Logger {
	l = l.orNoop()
	return &Logger{Logger: l.Logger.With("index", name)}
}

// WithPartition returns a Logger scoped to a build partition.
func (l *Logger) WithPartition(partition int) *Logger {
	l = l.orNoop()
	return &Logger{Logger: l.Logger.With("partition", partition)}
}

// WithVertex returns a Logger scoped to a single vertex.
func (l *Logger) WithVertex(v uint32) *Logger {
	l = l.orNoop()
	return &Logger{Logger: l.Logger.With("vertex", v)}
}

// LogBuildStart logs the start of a build with its top-level parameters.
func (l *Logger) LogBuildStart(n, partitions, dim int) {
	l.orNoop().Info("build started", "vectors", n, "partitions", partitions, "dim", dim)
}

// LogPartitionBuilt logs the completion of a single partition's Vamana
// build.
func (l *Logger) LogPartitionBuilt(partition, size int) {
	l.orNoop().Info("partition built", "partition", partition, "size", size)
}

// LogMerge logs the completion of the partition merge step.
func (l *Logger) LogMerge(n int) {
	l.orNoop().Info("partitions merged", "vertices", n)
}

// LogSearch logs a completed Nearest query at debug level.
func (l *Logger) LogSearch(k, found int) {
	l.orNoop().Debug("search completed", "k", k, "found", found)
}
