package docvec

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordAppend is called after each append operation.
	// chunks is the number of chunks attempted, duration is the total time
	// taken, err is nil if successful.
	RecordAppend(chunks int, duration time.Duration, err error)

	// RecordBuild is called after each full rebuild.
	RecordBuild(chunks int, duration time.Duration, err error)

	// RecordSearch is called after each search operation.
	// k is the number of neighbors requested.
	RecordSearch(k int, duration time.Duration, err error)

	// RecordTrain is called after each index training pass.
	RecordTrain(sampleSize int, duration time.Duration, err error)

	// RecordMigrate is called after each legacy migration.
	RecordMigrate(migrated, skipped int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordAppend(int, time.Duration, error)       {}
func (NoopMetricsCollector) RecordBuild(int, time.Duration, error)        {}
func (NoopMetricsCollector) RecordSearch(int, time.Duration, error)       {}
func (NoopMetricsCollector) RecordTrain(int, time.Duration, error)        {}
func (NoopMetricsCollector) RecordMigrate(int, int, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	AppendCount      atomic.Int64
	AppendChunks     atomic.Int64
	AppendErrors     atomic.Int64
	AppendTotalNanos atomic.Int64
	BuildCount       atomic.Int64
	BuildErrors      atomic.Int64
	SearchCount      atomic.Int64
	SearchErrors     atomic.Int64
	SearchTotalNanos atomic.Int64
	TrainCount       atomic.Int64
	TrainErrors      atomic.Int64
	MigrateCount     atomic.Int64
	MigratedRows     atomic.Int64
	MigrateSkipped   atomic.Int64
}

// RecordAppend implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAppend(chunks int, duration time.Duration, err error) {
	b.AppendCount.Add(1)
	b.AppendChunks.Add(int64(chunks))
	b.AppendTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.AppendErrors.Add(1)
	}
}

// RecordBuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBuild(chunks int, duration time.Duration, err error) {
	b.BuildCount.Add(1)
	if err != nil {
		b.BuildErrors.Add(1)
	}
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(k int, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

// RecordTrain implements MetricsCollector.
func (b *BasicMetricsCollector) RecordTrain(sampleSize int, duration time.Duration, err error) {
	b.TrainCount.Add(1)
	if err != nil {
		b.TrainErrors.Add(1)
	}
}

// RecordMigrate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordMigrate(migrated, skipped int, duration time.Duration, err error) {
	b.MigrateCount.Add(1)
	b.MigratedRows.Add(int64(migrated))
	b.MigrateSkipped.Add(int64(skipped))
}
