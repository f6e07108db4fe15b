package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records cache lookup events and query executions.
//
// The Record{Hit,Miss,Eviction,Expiry} methods satisfy the cache package's
// EventRecorder, so a Metrics can be passed to the store directly.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic and must return quickly.
type Metrics interface {
	RecordHit(ctx context.Context)
	RecordMiss(ctx context.Context)
	RecordEviction(ctx context.Context)
	RecordExpiry(ctx context.Context)

	// RecordExecution records a query execution with duration and error
	// status. Executions happen only on the cache miss path.
	RecordExecution(ctx context.Context, meta QueryMeta, duration time.Duration, err error)
}

type metricsImpl struct {
	lookups     metric.Int64Counter
	hits        metric.Int64Counter
	misses      metric.Int64Counter
	evictions   metric.Int64Counter
	expirations metric.Int64Counter

	execErrors   metric.Int64Counter
	execDuration metric.Float64Histogram
}

// NewMetrics creates a Metrics instance with instruments registered on the
// given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	m := &metricsImpl{}

	var err error
	if m.lookups, err = meter.Int64Counter(
		"query_cache.lookups",
		metric.WithDescription("Total number of cache lookups"),
		metric.WithUnit("{lookup}"),
	); err != nil {
		return nil, err
	}

	if m.hits, err = meter.Int64Counter(
		"query_cache.hits",
		metric.WithDescription("Lookups served from the cache"),
		metric.WithUnit("{lookup}"),
	); err != nil {
		return nil, err
	}

	if m.misses, err = meter.Int64Counter(
		"query_cache.misses",
		metric.WithDescription("Lookups that fell through to query execution"),
		metric.WithUnit("{lookup}"),
	); err != nil {
		return nil, err
	}

	if m.evictions, err = meter.Int64Counter(
		"query_cache.evictions",
		metric.WithDescription("Entries displaced by capacity pressure"),
		metric.WithUnit("{entry}"),
	); err != nil {
		return nil, err
	}

	if m.expirations, err = meter.Int64Counter(
		"query_cache.expirations",
		metric.WithDescription("Entries swept after their TTL on read"),
		metric.WithUnit("{entry}"),
	); err != nil {
		return nil, err
	}

	if m.execErrors, err = meter.Int64Counter(
		"query.exec.errors",
		metric.WithDescription("Query executions that returned an error"),
		metric.WithUnit("{error}"),
	); err != nil {
		return nil, err
	}

	if m.execDuration, err = meter.Float64Histogram(
		"query.exec.duration_ms",
		metric.WithDescription("Query execution duration in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *metricsImpl) RecordHit(ctx context.Context) {
	m.lookups.Add(ctx, 1)
	m.hits.Add(ctx, 1)
}

func (m *metricsImpl) RecordMiss(ctx context.Context) {
	m.lookups.Add(ctx, 1)
	m.misses.Add(ctx, 1)
}

func (m *metricsImpl) RecordEviction(ctx context.Context) {
	m.evictions.Add(ctx, 1)
}

func (m *metricsImpl) RecordExpiry(ctx context.Context) {
	m.expirations.Add(ctx, 1)
}

func (m *metricsImpl) RecordExecution(ctx context.Context, meta QueryMeta, duration time.Duration, err error) {
	opt := metric.WithAttributes(
		attribute.String("query.data_source", meta.DataSourceID),
	)

	if err != nil {
		m.execErrors.Add(ctx, 1, opt)
	}
	m.execDuration.Record(ctx, float64(duration.Milliseconds()), opt)
}

// noopMetrics is a metrics implementation that does nothing.
type noopMetrics struct{}

func (noopMetrics) RecordHit(context.Context)      {}
func (noopMetrics) RecordMiss(context.Context)     {}
func (noopMetrics) RecordEviction(context.Context) {}
func (noopMetrics) RecordExpiry(context.Context)   {}
func (noopMetrics) RecordExecution(context.Context, QueryMeta, time.Duration, error) {
}
