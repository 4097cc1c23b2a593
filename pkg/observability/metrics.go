package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricRequestsTotal    = "portlang.requests.total"
	metricRequestDuration  = "portlang.request.duration.seconds"
	metricErrorsTotal      = "portlang.errors.total"
	metricInflightRequests = "portlang.inflight.requests"

	metricDocumentsTotal = "portlang.documents.total"
	metricFindingsTotal  = "portlang.findings.total"
	metricCacheHits      = "portlang.cache.hits.total"
	metricCacheMisses    = "portlang.cache.misses.total"
	metricDocumentBytes  = "portlang.document.size.bytes"

	attrOp       = "op"
	attrStatus   = "status"
	attrOutcome  = "outcome"
	attrSeverity = "severity"
	attrStage    = "stage"

	// StatusOK marks a successful request.
	StatusOK = "ok"
	// StatusError marks a failed request.
	StatusError = "error"
)

// Document outcomes recorded by CompileMetrics.
const (
	OutcomeValid    = "valid"
	OutcomeWarnings = "warnings"
	OutcomeInvalid  = "invalid"
	OutcomeFatal    = "fatal"
)

// Compilation is sub-millisecond for typical documents; the upper buckets
// cover report rendering and HTTP round trips.
var durationBucketBoundaries = []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

var sizeBucketBoundaries = []float64{256, 1024, 4096, 16384, 65536, 262144, 1048576}

// metricBuilder accumulates instrument creation errors so a set of
// instruments can be built with a single error check.
type metricBuilder struct {
	meter metric.Meter
	err   error
}

func (b *metricBuilder) counter(name, desc, unit string) metric.Int64Counter {
	c, err := b.meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	b.setErr(name, err)

	return c
}

func (b *metricBuilder) histogram(name, desc, unit string, bounds ...float64) metric.Float64Histogram {
	h, err := b.meter.Float64Histogram(name,
		metric.WithDescription(desc),
		metric.WithUnit(unit),
		metric.WithExplicitBucketBoundaries(bounds...),
	)
	b.setErr(name, err)

	return h
}

func (b *metricBuilder) upDownCounter(name, desc, unit string) metric.Int64UpDownCounter {
	c, err := b.meter.Int64UpDownCounter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	b.setErr(name, err)

	return c
}

func (b *metricBuilder) setErr(name string, err error) {
	if err != nil && b.err == nil {
		b.err = fmt.Errorf("create %s: %w", name, err)
	}
}

// REDMetrics holds the instruments for Rate, Error, Duration metrics.
type REDMetrics struct {
	requestsTotal    metric.Int64Counter
	requestDuration  metric.Float64Histogram
	errorsTotal      metric.Int64Counter
	inflightRequests metric.Int64UpDownCounter
}

// NewREDMetrics creates RED metric instruments from the given meter.
func NewREDMetrics(mt metric.Meter) (*REDMetrics, error) {
	b := &metricBuilder{meter: mt}

	red := &REDMetrics{
		requestsTotal:    b.counter(metricRequestsTotal, "Total number of requests", "{request}"),
		requestDuration:  b.histogram(metricRequestDuration, "Request duration in seconds", "s", durationBucketBoundaries...),
		errorsTotal:      b.counter(metricErrorsTotal, "Total number of errors", "{error}"),
		inflightRequests: b.upDownCounter(metricInflightRequests, "Number of in-flight requests", "{request}"),
	}

	if b.err != nil {
		return nil, b.err
	}

	return red, nil
}

// RecordRequest records a completed request. Safe on a nil receiver.
func (rm *REDMetrics) RecordRequest(ctx context.Context, op, status string, duration time.Duration) {
	if rm == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrOp, op),
		attribute.String(attrStatus, status),
	)

	rm.requestsTotal.Add(ctx, 1, attrs)
	rm.requestDuration.Record(ctx, duration.Seconds(), attrs)

	if status == StatusError {
		rm.errorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrOp, op)))
	}
}

// TrackInflight increments the in-flight gauge and returns a function to
// decrement it. Safe on a nil receiver.
func (rm *REDMetrics) TrackInflight(ctx context.Context, op string) func() {
	if rm == nil {
		return func() {}
	}

	attrs := metric.WithAttributes(attribute.String(attrOp, op))
	rm.inflightRequests.Add(ctx, 1, attrs)

	return func() {
		rm.inflightRequests.Add(ctx, -1, attrs)
	}
}

// CompileMetrics holds instruments describing compiled documents.
type CompileMetrics struct {
	documents   metric.Int64Counter
	findings    metric.Int64Counter
	cacheHits   metric.Int64Counter
	cacheMisses metric.Int64Counter
	size        metric.Float64Histogram
}

// CompileStats describes one compilation, decoupled from pipeline types.
type CompileStats struct {
	Outcome  string
	Stage    string
	Errors   int
	Warnings int
	Bytes    int
	CacheHit bool
}

// NewCompileMetrics creates document metric instruments from the given meter.
func NewCompileMetrics(mt metric.Meter) (*CompileMetrics, error) {
	b := &metricBuilder{meter: mt}

	cm := &CompileMetrics{
		documents:   b.counter(metricDocumentsTotal, "Documents compiled by outcome", "{document}"),
		findings:    b.counter(metricFindingsTotal, "Validation findings by severity", "{finding}"),
		cacheHits:   b.counter(metricCacheHits, "Compilation cache hits", "{hit}"),
		cacheMisses: b.counter(metricCacheMisses, "Compilation cache misses", "{miss}"),
		size:        b.histogram(metricDocumentBytes, "Document source size in bytes", "By", sizeBucketBoundaries...),
	}

	if b.err != nil {
		return nil, b.err
	}

	return cm, nil
}

// RecordCompile records one compilation. Safe on a nil receiver.
func (cm *CompileMetrics) RecordCompile(ctx context.Context, stats CompileStats) {
	if cm == nil {
		return
	}

	outcome := []attribute.KeyValue{attribute.String(attrOutcome, stats.Outcome)}
	if stats.Stage != "" {
		outcome = append(outcome, attribute.String(attrStage, stats.Stage))
	}

	cm.documents.Add(ctx, 1, metric.WithAttributes(outcome...))
	cm.findings.Add(ctx, int64(stats.Errors), metric.WithAttributes(attribute.String(attrSeverity, "error")))
	cm.findings.Add(ctx, int64(stats.Warnings), metric.WithAttributes(attribute.String(attrSeverity, "warning")))
	cm.size.Record(ctx, float64(stats.Bytes))

	if stats.CacheHit {
		cm.cacheHits.Add(ctx, 1)
	} else {
		cm.cacheMisses.Add(ctx, 1)
	}
}
