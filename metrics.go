package affinity

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordQuery is called after each cell query. hit is false when the
	// query failed to resolve every requested schema.
	RecordQuery(duration time.Duration, hit bool)

	// RecordQueryRow is called after each row query.
	RecordQueryRow(duration time.Duration, hit bool)

	// RecordLoad is called after each load, err is nil if successful.
	RecordLoad(duration time.Duration, err error)

	// RecordSave is called after each save, err is nil if successful.
	RecordSave(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordQuery(time.Duration, bool)    {}
func (NoopMetricsCollector) RecordQueryRow(time.Duration, bool) {}
func (NoopMetricsCollector) RecordLoad(time.Duration, error)    {}
func (NoopMetricsCollector) RecordSave(time.Duration, error)    {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	QueryCount      atomic.Int64
	QueryMisses     atomic.Int64
	QueryTotalNanos atomic.Int64
	QueryRowCount   atomic.Int64
	QueryRowMisses  atomic.Int64
	LoadCount       atomic.Int64
	LoadErrors      atomic.Int64
	LoadTotalNanos  atomic.Int64
	SaveCount       atomic.Int64
	SaveErrors      atomic.Int64
	SaveTotalNanos  atomic.Int64
}

// RecordQuery implements MetricsCollector.
func (b *BasicMetricsCollector) RecordQuery(duration time.Duration, hit bool) {
	b.QueryCount.Add(1)
	b.QueryTotalNanos.Add(duration.Nanoseconds())
	if !hit {
		b.QueryMisses.Add(1)
	}
}

// RecordQueryRow implements MetricsCollector.
func (b *BasicMetricsCollector) RecordQueryRow(duration time.Duration, hit bool) {
	b.QueryRowCount.Add(1)
	if !hit {
		b.QueryRowMisses.Add(1)
	}
}

// RecordLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLoad(duration time.Duration, err error) {
	b.LoadCount.Add(1)
	b.LoadTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.LoadErrors.Add(1)
	}
}

// RecordSave implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSave(duration time.Duration, err error) {
	b.SaveCount.Add(1)
	b.SaveTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SaveErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		QueryCount:     b.QueryCount.Load(),
		QueryMisses:    b.QueryMisses.Load(),
		QueryAvgNanos:  avg(b.QueryTotalNanos.Load(), b.QueryCount.Load()),
		QueryRowCount:  b.QueryRowCount.Load(),
		QueryRowMisses: b.QueryRowMisses.Load(),
		LoadCount:      b.LoadCount.Load(),
		LoadErrors:     b.LoadErrors.Load(),
		LoadAvgNanos:   avg(b.LoadTotalNanos.Load(), b.LoadCount.Load()),
		SaveCount:      b.SaveCount.Load(),
		SaveErrors:     b.SaveErrors.Load(),
		SaveAvgNanos:   avg(b.SaveTotalNanos.Load(), b.SaveCount.Load()),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	QueryCount     int64
	QueryMisses    int64
	QueryAvgNanos  int64
	QueryRowCount  int64
	QueryRowMisses int64
	LoadCount      int64
	LoadErrors     int64
	LoadAvgNanos   int64
	SaveCount      int64
	SaveErrors     int64
	SaveAvgNanos   int64
}
